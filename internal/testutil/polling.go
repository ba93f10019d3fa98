// Package testutil provides a controllable clock and polling helpers for
// tests of time-driven and asynchronous behaviour.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Poll checks condition every interval until it returns true, ctx is done,
// or timeout elapses.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if condition() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		case <-ticker.C:
		}
	}
}

// TickUntil calls tick until done reports true, at most limit times, and
// returns the number of calls made. It is the synchronous counterpart of
// Poll, for driving a tree one tick at a time.
func TickUntil(tick func(), done func() bool, limit int) (int, error) {
	for i := 1; i <= limit; i++ {
		tick()
		if done() {
			return i, nil
		}
	}
	return limit, fmt.Errorf("condition not reached after %d ticks", limit)
}
