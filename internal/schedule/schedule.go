package schedule

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Entry is one pause window. Start and Stop are nominal; each time the entry
// is resampled, a delay drawn uniformly from [0, Jitter] is added to each of
// them independently.
type Entry struct {
	Start  TimeOfDay
	Stop   TimeOfDay
	Jitter time.Duration

	start, stop TimeOfDay
	draws       uint64
}

// NewEntry validates a nominal window. Windows with start == stop are
// rejected since they are ambiguous between empty and a full day.
func NewEntry(start, stop TimeOfDay, jitter time.Duration) (Entry, error) {
	e := Entry{Start: start, Stop: stop, Jitter: jitter, start: start, stop: stop}
	if err := e.validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) validate() error {
	switch {
	case e.Start < 0 || time.Duration(e.Start) >= Day:
		return fmt.Errorf("%w: start %s out of range", ErrInvalidRecord, time.Duration(e.Start))
	case e.Stop < 0 || time.Duration(e.Stop) >= Day:
		return fmt.Errorf("%w: stop %s out of range", ErrInvalidRecord, time.Duration(e.Stop))
	case e.Start == e.Stop:
		return fmt.Errorf("%w: start and stop are both %s", ErrInvalidRecord, e.Start)
	case e.Jitter < 0 || e.Jitter >= Day:
		return fmt.Errorf("%w: jitter %s must be in [0, 24h)", ErrInvalidRecord, e.Jitter)
	}
	return nil
}

// Window returns the jittered window currently in effect.
func (e Entry) Window() (start, stop TimeOfDay) { return e.start, e.stop }

// Draws is how many times the entry's jitter has been drawn.
func (e Entry) Draws() uint64 { return e.draws }

func (e *Entry) resample(rng *rand.Rand) {
	e.start = e.Start.Add(jitter(rng, e.Jitter))
	e.stop = e.Stop.Add(jitter(rng, e.Jitter))
	e.draws++
}

func jitter(rng *rand.Rand, bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return time.Duration(rng.Int64N(int64(bound) + 1))
}

// Schedule is a list of entries shared by the schedule nodes built on it.
// It is safe for concurrent use, so entries can be replaced while a tree is
// being ticked; nodes observe a replacement at their next activation.
type Schedule struct {
	mu      sync.Mutex
	entries []Entry
	version uint64
	clock   Clock
	rng     *rand.Rand
	logger  *slog.Logger
}

// New builds a schedule, drawing the initial jitter of every entry.
func New(entries []Entry, opts ...Option) (*Schedule, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &Schedule{clock: o.clock, rng: o.rng, logger: o.logger}
	if err := s.Replace(entries); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps in a new set of entries, drawing fresh jitter for each. If
// any entry is invalid the current entries are kept.
func (s *Schedule) Replace(entries []Entry) error {
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	for i := range s.entries {
		s.entries[i].resample(s.rng)
	}
	s.version++
	s.logger.Info("[Schedule] entries replaced", "entries", len(s.entries), "version", s.version)
	return nil
}

// Entries returns a copy of the current entries, including their jittered
// windows.
func (s *Schedule) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clock returns the schedule's clock.
func (s *Schedule) Clock() Clock { return s.clock }

// Active reports whether now lies inside any entry's jittered window.
func (s *Schedule) Active(now time.Time) bool {
	idx, _ := s.containing(At(now))
	return len(idx) != 0
}

// containing returns the indices of every entry whose jittered window
// contains now, in order, along with the current version.
func (s *Schedule) containing(now TimeOfDay) ([]int, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, e := range s.entries {
		if Contains(e.start, e.stop, now) {
			out = append(out, i)
		}
	}
	return out, s.version
}

// enter finds the entry containing now, returns how long until its jittered
// stop, and resamples its jitter for the next cycle.
func (s *Schedule) enter(now TimeOfDay) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		e := &s.entries[i]
		if !Contains(e.start, e.stop, now) {
			continue
		}
		wait := Until(e.stop, now)
		s.resampleLocked(i)
		return wait, true
	}
	return 0, false
}

// draws returns the draw count of entry idx.
func (s *Schedule) draws(idx int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.entries) {
		return 0
	}
	return s.entries[idx].draws
}

// resample redraws the jitter of entry idx, unless version is stale or the
// entry has been redrawn since its draw count was draws.
func (s *Schedule) resample(idx int, version, draws uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version != s.version || idx < 0 || idx >= len(s.entries) || s.entries[idx].draws != draws {
		return
	}
	s.resampleLocked(idx)
}

func (s *Schedule) resampleLocked(idx int) {
	e := &s.entries[idx]
	e.resample(s.rng)
	s.logger.Info("[Schedule] jitter resampled",
		"entry", idx,
		"start", e.start.String(),
		"stop", e.stop.String())
}
