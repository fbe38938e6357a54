package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a FixedClock reports by default.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// FixedClock is a deterministic wall clock for tests.
//
// Every call to Now returns the current instant and then advances it by the
// step, so two runs making the same calls see the same times.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFixedClock returns a clock starting at Epoch and advancing one second
// per call.
func NewFixedClock() *FixedClock {
	return &FixedClock{now: Epoch, step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next instant Now will report without advancing.
func (c *FixedClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset moves the clock back to Epoch.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
