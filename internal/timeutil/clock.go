// Package timeutil holds the clock behind the reductions cache timestamps
// (run registration, stored_at) and the elapsed times logged by reductions.
package timeutil

import (
	"sync"
	"time"
)

// Clock is read when a run is registered, when a reduction is stored and
// when a batch of dumps has been reduced.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// ManualClock only moves when told to, so cache rows get predictable
// timestamps in tests. It is safe for concurrent reducers.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock stopped at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps to t, backwards included.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
