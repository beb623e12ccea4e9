package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant every FakeClock starts at unless told otherwise.
var Epoch = time.Date(2030, time.January, 1, 9, 0, 0, 0, time.UTC)

// FakeClock is a wall clock that only moves when told to.
//
// It satisfies engine.Clock, so struggle detection can be driven
// deterministically from tests and harness scenarios.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

// NewFakeClockAt creates a clock frozen at t.
func NewFakeClockAt(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored
// so the clock stays monotonic.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Reset returns the clock to Epoch for test reuse.
func (c *FakeClock) Reset() {
	c.Set(Epoch)
}
