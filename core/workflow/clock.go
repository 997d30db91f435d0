package workflow

import (
	"sync"
	"time"
)

// Clock supplies the current timestamp in unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock used to warp time in tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock creates a clock frozen at now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the frozen timestamp.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to an absolute timestamp.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward by the given number of seconds.
func (c *ManualClock) Advance(seconds int64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}
