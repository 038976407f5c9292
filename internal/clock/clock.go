// Package clock provides the scheduling capability used by the focus and
// breathing timers.
package clock

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle string

// Clock schedules single callbacks and cancels them.
type Clock interface {
	// Now returns the clock's current time.
	Now() time.Time
	// ScheduleOnce runs fn once after delay and returns a handle for Cancel.
	ScheduleOnce(delay time.Duration, fn func()) Handle
	// Cancel stops a scheduled callback. Unknown or fired handles are ignored.
	Cancel(h Handle)
}

// timerEntry tracks information about a scheduled callback
type timerEntry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// TimerClock implements Clock on top of time.AfterFunc.
type TimerClock struct {
	timers map[Handle]*timerEntry
	mu     sync.Mutex
	nextID int64
}

// NewTimerClock creates a new TimerClock.
func NewTimerClock() *TimerClock {
	return &TimerClock{
		timers: make(map[Handle]*timerEntry),
	}
}

// Now returns the wall clock time.
func (c *TimerClock) Now() time.Time {
	return time.Now()
}

// ScheduleOnce schedules fn to run on its own goroutine after delay.
func (c *TimerClock) ScheduleOnce(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	h := Handle(fmt.Sprintf("timer_%d", c.nextID))

	timer := time.AfterFunc(delay, func() {
		c.mu.Lock()
		_, live := c.timers[h]
		delete(c.timers, h)
		c.mu.Unlock()
		if !live {
			return
		}
		fn()
	})
	c.timers[h] = &timerEntry{timer: timer, expiresAt: time.Now().Add(delay)}

	slog.Debug("TimerClock.ScheduleOnce", "handle", h, "delay", delay)
	return h
}

// Cancel cancels a scheduled callback by handle.
func (c *TimerClock) Cancel(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.timers[h]; exists {
		entry.timer.Stop()
		delete(c.timers, h)
		slog.Debug("TimerClock.Cancel succeeded", "handle", h)
	}
}

// Pending returns the number of callbacks that have not fired or been cancelled.
func (c *TimerClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop cancels all scheduled callbacks.
func (c *TimerClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for h, entry := range c.timers {
		entry.timer.Stop()
		delete(c.timers, h)
	}
	slog.Info("TimerClock stopped all timers")
}
