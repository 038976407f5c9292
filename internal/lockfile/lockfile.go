// Package lockfile keeps two Parabola processes from sharing a state directory.
//
// The lock is an flock on a file inside the directory, so the kernel releases
// it when the holding process exits, however it exits.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "parabola.lock"

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID       int
	StartedAt time.Time
	Addr      string
}

// String renders the holder in the lock file's key=value format.
func (h Holder) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", h.PID)
	if !h.StartedAt.IsZero() {
		fmt.Fprintf(&b, "started=%s\n", h.StartedAt.UTC().Format(time.RFC3339))
	}
	if h.Addr != "" {
		fmt.Fprintf(&b, "addr=%s\n", h.Addr)
	}
	return b.String()
}

// ParseHolder reads the key=value lines written by Holder.String. Unknown keys
// and malformed values are skipped.
func ParseHolder(content string) Holder {
	var h Holder
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(val); err == nil {
				h.PID = pid
			}
		case "started":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				h.StartedAt = t
			}
		case "addr":
			h.Addr = val
		}
	}
	return h
}

// Lock represents an active directory lock
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive lock on stateDir, creating the directory if
// needed. addr is recorded for the error shown to a second instance and may be
// empty. When the lock is held elsewhere the error is a *LockError.
func AcquireLock(stateDir, addr string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: acquiring", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// no O_TRUNC: the current holder's details must survive a failed attempt
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{LockPath: lockPath, Holder: describeHolder(lockPath), Cause: err}
		slog.Error("lockfile.AcquireLock: state directory is locked", "lock_path", lockPath, "holder", lockErr.Holder)
		return nil, lockErr
	}

	holder := Holder{PID: os.Getpid(), StartedAt: time.Now(), Addr: addr}
	if err := writeHolder(file, holder); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", holder.PID)
	return &Lock{file: file, path: lockPath}, nil
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(h.String()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("lockfile.writeHolder: sync failed", "error", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("lockfile.Release: unlock failed", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("lockfile.Release: close failed", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: remove failed", "error", err, "lock_path", l.path)
	}
	l.file = nil
	slog.Info("Released state directory lock", "lock_path", l.path)
	return nil
}

// LockError reports that another process holds the state directory.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Another Parabola instance is already running using the same state directory.\n\nLock file: %s", e.LockPath)
	if e.Holder != "" {
		fmt.Fprintf(&b, "\nExisting process: %s", e.Holder)
	}
	fmt.Fprintf(&b, "\n\nIf no other Parabola instance is running, the lock file is stale and can be removed with:\n  rm %s", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeHolder summarizes the lock file content for error messages.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unable to read lock file information"
	}
	h := ParseHolder(string(data))
	if h.PID <= 0 {
		if len(strings.TrimSpace(string(data))) == 0 {
			return "lock file exists but contains no process information"
		}
		return fmt.Sprintf("process information: %s", strings.TrimSpace(string(data)))
	}

	state := "not running - stale lock"
	if isProcessRunning(h.PID) {
		state = "running"
	}
	desc := fmt.Sprintf("PID %d (%s)", h.PID, state)
	if !h.StartedAt.IsZero() {
		desc += ", started " + h.StartedAt.Format(time.RFC3339)
	}
	if h.Addr != "" {
		desc += ", serving " + h.Addr
	}
	return desc
}

// isProcessRunning sends signal 0, which checks for existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
