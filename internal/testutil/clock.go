package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/Parabola/internal/clock"
)

type manualTimer struct {
	at  time.Time
	seq int64
	fn  func()
}

// ManualClock is a clock.Clock whose time only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int64
	pending map[clock.Handle]*manualTimer
	delays  []time.Duration
}

// NewManualClock creates a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:     start,
		pending: make(map[clock.Handle]*manualTimer),
	}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// ScheduleOnce records fn to run once the clock has advanced by delay.
func (c *ManualClock) ScheduleOnce(delay time.Duration, fn func()) clock.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	c.nextID++
	h := clock.Handle(fmt.Sprintf("manual_%d", c.nextID))
	c.pending[h] = &manualTimer{at: c.now.Add(delay), seq: c.nextID, fn: fn}
	c.delays = append(c.delays, delay)
	return h
}

// Cancel removes a pending callback.
func (c *ManualClock) Cancel(h clock.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, h)
}

// Pending returns the number of callbacks waiting to fire.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Delays returns every delay passed to ScheduleOnce, in call order.
func (c *ManualClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

// Advance moves the clock forward by d, firing every callback that becomes due.
// Callbacks scheduled while advancing fire too if they fall inside the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		h, next := c.earliestLocked(target)
		if next == nil {
			break
		}
		delete(c.pending, h)
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *ManualClock) earliestLocked(limit time.Time) (clock.Handle, *manualTimer) {
	handles := make([]clock.Handle, 0, len(c.pending))
	for h, tm := range c.pending {
		if !tm.at.After(limit) {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return "", nil
	}
	sort.Slice(handles, func(i, j int) bool {
		a, b := c.pending[handles[i]], c.pending[handles[j]]
		if a.at.Equal(b.at) {
			return a.seq < b.seq
		}
		return a.at.Before(b.at)
	})
	return handles[0], c.pending[handles[0]]
}
