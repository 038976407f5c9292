package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLockAcquisition(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir, ":8080")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(tempDir, LockFileName)
	if lock.Path() != lockPath {
		t.Errorf("expected lock path %s, got %s", lockPath, lock.Path())
	}
	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	h := ParseHolder(string(content))
	if h.PID != os.Getpid() {
		t.Errorf("expected pid %d in lock file, got %d", os.Getpid(), h.PID)
	}
	if h.Addr != ":8080" || h.StartedAt.IsZero() {
		t.Errorf("unexpected holder: %+v", h)
	}
}

func TestLockConflict(t *testing.T) {
	tempDir := t.TempDir()

	lock1, err := AcquireLock(tempDir, ":9090")
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2, err := AcquireLock(tempDir, "")
	if err == nil {
		lock2.Release()
		t.Fatalf("Second lock acquisition should have failed")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got: %T", err)
	}
	msg := err.Error()
	for _, want := range []string{"Another Parabola instance is already running", tempDir, "(running)", "serving :9090"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}

	// the failed attempt must not clobber the holder's details
	content, _ := os.ReadFile(filepath.Join(tempDir, LockFileName))
	if ParseHolder(string(content)).Addr != ":9090" {
		t.Errorf("lock file was overwritten by the failed attempt: %q", content)
	}
}

func TestLockRelease(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir, "")
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}

	lock2, err := AcquireLock(tempDir, "")
	if err != nil {
		t.Fatalf("should be able to re-acquire after release: %v", err)
	}
	lock2.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir, "")
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory was not created: %v", err)
	}
}

func TestParseHolder(t *testing.T) {
	started := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	in := Holder{PID: 4242, StartedAt: started, Addr: "127.0.0.1:8080"}
	out := ParseHolder(in.String())
	if out.PID != 4242 || !out.StartedAt.Equal(started) || out.Addr != "127.0.0.1:8080" {
		t.Errorf("round trip mismatch: %+v", out)
	}

	legacy := ParseHolder("pid=17\n")
	if legacy.PID != 17 || !legacy.StartedAt.IsZero() {
		t.Errorf("unexpected parse of pid-only content: %+v", legacy)
	}
	if h := ParseHolder("garbage\npid=abc\n"); h.PID != 0 {
		t.Errorf("expected no pid from malformed content, got %d", h.PID)
	}
}

func TestDescribeHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	os.WriteFile(path, nil, 0644)
	if got := describeHolder(path); !strings.Contains(got, "no process information") {
		t.Errorf("unexpected description for empty file: %s", got)
	}

	// a pid far above any realistic pid_max
	os.WriteFile(path, []byte("pid=999999999\n"), 0644)
	if got := describeHolder(path); !strings.Contains(got, "stale lock") {
		t.Errorf("expected stale lock description, got %s", got)
	}

	if got := describeHolder(filepath.Join(dir, "missing")); got != "unable to read lock file information" {
		t.Errorf("unexpected description for missing file: %s", got)
	}
}
