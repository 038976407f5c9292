// Package focus implements the focus countdown that drives deep-work sessions.
package focus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/Parabola/internal/clock"
	"github.com/BTreeMap/Parabola/internal/models"
)

// tickInterval is the countdown resolution.
const tickInterval = time.Second

// ErrInvalidDuration is returned by Configure for a non-positive duration.
var ErrInvalidDuration = fmt.Errorf("%w: focus duration must be positive", models.ErrConfiguration)

// Option configures a Session.
type Option func(*Session)

// WithOnChange registers a hook invoked with the new snapshot after every
// state change. It runs outside the session lock.
func WithOnChange(fn func(models.CountdownState)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithOnComplete registers a hook invoked once when the countdown reaches zero.
func WithOnComplete(fn func(models.CountdownState)) Option {
	return func(s *Session) {
		s.onComplete = fn
	}
}

// Session is a single countdown state machine.
//
// Idle -> Running -> {Paused, Completed}; Paused -> Running. Completed is
// terminal until Reset or Configure. At most one tick is pending at a time.
type Session struct {
	mu        sync.Mutex
	clock     clock.Clock
	total     int
	remaining int
	status    models.CountdownStatus

	pending  clock.Handle
	gen      uint64
	deadline time.Time

	onChange   func(models.CountdownState)
	onComplete func(models.CountdownState)
}

// NewSession creates a session configured for totalSeconds.
func NewSession(c clock.Clock, totalSeconds int, opts ...Option) (*Session, error) {
	if err := (models.TimerConfig{TotalSeconds: totalSeconds}).Validate(); err != nil {
		return nil, ErrInvalidDuration
	}
	s := &Session{
		clock:     c,
		total:     totalSeconds,
		remaining: totalSeconds,
		status:    models.CountdownIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Configure replaces the session duration and returns it to Idle, cancelling
// any active run. An invalid duration leaves the session untouched.
func (s *Session) Configure(totalSeconds int) error {
	if err := (models.TimerConfig{TotalSeconds: totalSeconds}).Validate(); err != nil {
		slog.Warn("Session.Configure: rejected duration", "total_seconds", totalSeconds)
		return ErrInvalidDuration
	}

	s.mu.Lock()
	s.cancelPendingLocked()
	s.total = totalSeconds
	s.remaining = totalSeconds
	s.status = models.CountdownIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Session.Configure", "total_seconds", totalSeconds)
	s.notify(snap, false)
	return nil
}

// Start begins or resumes the countdown. It is a no-op when Running or Completed.
func (s *Session) Start() {
	s.mu.Lock()
	if s.status != models.CountdownIdle && s.status != models.CountdownPaused {
		status := s.status
		s.mu.Unlock()
		slog.Debug("Session.Start: ignored", "status", status)
		return
	}
	s.status = models.CountdownRunning
	s.deadline = s.clock.Now()
	s.scheduleNextLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Session.Start", "remaining_seconds", snap.RemainingSeconds)
	s.notify(snap, false)
}

// Pause suspends a running countdown. It is a no-op otherwise.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.status != models.CountdownRunning {
		s.mu.Unlock()
		return
	}
	s.cancelPendingLocked()
	s.status = models.CountdownPaused
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Session.Pause", "remaining_seconds", snap.RemainingSeconds)
	s.notify(snap, false)
}

// Reset cancels any scheduled tick and returns to Idle with the full duration.
func (s *Session) Reset() {
	s.mu.Lock()
	s.cancelPendingLocked()
	s.remaining = s.total
	s.status = models.CountdownIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Session.Reset", "total_seconds", snap.TotalSeconds)
	s.notify(snap, false)
}

// State returns a snapshot of the countdown.
func (s *Session) State() models.CountdownState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// tick consumes one elapsed second. Only meaningful while Running.
func (s *Session) tick() {
	s.mu.Lock()
	snap, ticked, completed := s.tickLocked()
	s.mu.Unlock()
	if ticked {
		s.afterTick(snap, completed)
	}
}

func (s *Session) tickLocked() (snap models.CountdownState, ticked, completed bool) {
	if s.status != models.CountdownRunning {
		return models.CountdownState{}, false, false
	}
	s.cancelPendingLocked()
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.status = models.CountdownCompleted
		completed = true
	} else {
		s.scheduleNextLocked()
	}
	return s.snapshotLocked(), true, completed
}

func (s *Session) afterTick(snap models.CountdownState, completed bool) {
	if completed {
		slog.Info("Session: focus countdown completed", "total_seconds", snap.TotalSeconds)
	}
	s.notify(snap, completed)
}

// scheduleNextLocked schedules the next tick one interval after the previous
// deadline, so late callbacks do not push later ticks back.
func (s *Session) scheduleNextLocked() {
	s.deadline = s.deadline.Add(tickInterval)
	delay := s.deadline.Sub(s.clock.Now())

	s.gen++
	gen := s.gen
	s.pending = s.clock.ScheduleOnce(delay, func() { s.fire(gen) })
}

// fire runs a scheduled tick unless it was cancelled after being queued.
func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == "" {
		s.mu.Unlock()
		return
	}
	s.pending = ""
	snap, ticked, completed := s.tickLocked()
	s.mu.Unlock()
	if ticked {
		s.afterTick(snap, completed)
	}
}

func (s *Session) cancelPendingLocked() {
	if s.pending != "" {
		s.clock.Cancel(s.pending)
		s.pending = ""
	}
}

func (s *Session) snapshotLocked() models.CountdownState {
	return models.CountdownState{
		TotalSeconds:     s.total,
		RemainingSeconds: s.remaining,
		Status:           s.status,
	}
}

func (s *Session) notify(snap models.CountdownState, completed bool) {
	if s.onChange != nil {
		s.onChange(snap)
	}
	if completed && s.onComplete != nil {
		s.onComplete(snap)
	}
}
