// Package schedule implements time-of-day pause schedules: windows of the day
// during which a tree should wait, each with a random jitter applied to its
// start and stop so consecutive days do not line up exactly.
//
// A window whose start is after its stop wraps midnight. Times are compared
// in the clock's local time zone.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Day is the length of the time-of-day cycle.
const Day = 24 * time.Hour

// ErrInvalidRecord is wrapped by every schedule parsing or validation error.
var ErrInvalidRecord = errors.New("invalid schedule record")

// TimeOfDay is an offset from midnight, in [0, Day).
type TimeOfDay time.Duration

// ParseTimeOfDay parses a "HH:MM:SS" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	d, err := parseClock(s)
	if err != nil {
		return 0, err
	}
	return TimeOfDay(d), nil
}

// ParseJitter parses a jitter bound written as a "HH:MM:SS" duration. The
// empty string is zero jitter.
func ParseJitter(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return parseClock(s)
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not HH:MM:SS: %w", ErrInvalidRecord, s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// At returns the time of day of t, in t's location.
func At(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// Add returns t+d, wrapped into [0, Day).
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	v := (time.Duration(t) + d) % Day
	if v < 0 {
		v += Day
	}
	return TimeOfDay(v)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second))
}

// Contains reports whether now lies strictly inside the window from start to
// stop. A window with start after stop wraps midnight. A window with
// start == stop contains nothing.
func Contains(start, stop, now TimeOfDay) bool {
	switch {
	case start < stop:
		return start < now && now < stop
	case start > stop:
		return now > start || now < stop
	default:
		return false
	}
}

// Until returns how long it is from now until the next occurrence of stop,
// wrapping past midnight when stop is not later today.
func Until(stop, now TimeOfDay) time.Duration {
	if now < stop {
		return time.Duration(stop - now)
	}
	return Day - time.Duration(now) + time.Duration(stop)
}
