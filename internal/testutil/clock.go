package testutil

import (
	"sync"
	"time"
)

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock reading now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// At returns a clock reading hh:mm:ss on an arbitrary fixed day, in UTC.
func At(hh, mm, ss int) *ManualClock {
	return NewManualClock(time.Date(2024, time.March, 4, hh, mm, ss, 0, time.UTC))
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
