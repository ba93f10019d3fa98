package schedule

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/joeycumines/go-gates/internal/gate"
	"github.com/joeycumines/go-gates/internal/tree"
)

// Wait is a leaf that pauses the tree for the rest of a scheduled window.
//
// On initialise it looks for an entry containing the current time. If one
// matches, the leaf reports Running until the entry's jittered stop has been
// reached, then Success, and the entry's jitter is resampled straight away so
// the next cycle's window shifts. If nothing matches it succeeds immediately.
type Wait struct {
	name     string
	schedule *Schedule
	logger   *slog.Logger
	waiting  bool
	wait     time.Duration
	started  time.Time
}

var _ tree.Behaviour = (*Wait)(nil)

// NewWait builds the wait leaf.
func NewWait(name string, s *Schedule) (*tree.Leaf, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: leaf %q has no schedule", gate.ErrConfig, name)
	}
	return tree.NewLeaf(name, &Wait{name: name, schedule: s, logger: s.logger}), nil
}

func (w *Wait) Initialise() {
	now := w.schedule.clock.Now()
	w.wait, w.waiting = w.schedule.enter(At(now))
	if !w.waiting {
		return
	}
	w.started = now
	w.logger.Info("[Schedule] wait scheduled",
		"name", w.name,
		"wait", w.wait.String())
}

func (w *Wait) Update() tree.Status {
	if !w.waiting {
		return tree.Success
	}
	if w.schedule.clock.Now().Sub(w.started) < w.wait {
		return tree.Running
	}
	return tree.Success
}

func (w *Wait) Terminate(tree.Status) {}

// Remaining is how much of the current wait is left, zero if not waiting.
func (w *Wait) Remaining() time.Duration {
	if !w.waiting {
		return 0
	}
	return max(w.wait-w.schedule.clock.Now().Sub(w.started), 0)
}

// Check is a leaf that succeeds once for each distinct window it finds the
// current time in, and fails otherwise. It never waits.
//
// An entry that has fired is skipped until the current time leaves its
// window, at which point it is armed again. Check does not resample jitter.
type Check struct {
	schedule *Schedule
	fired    map[int]bool
	version  uint64
}

var _ tree.Behaviour = (*Check)(nil)

// NewCheck builds the check leaf.
func NewCheck(name string, s *Schedule) (*tree.Leaf, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: leaf %q has no schedule", gate.ErrConfig, name)
	}
	return tree.NewLeaf(name, &Check{schedule: s, fired: make(map[int]bool)}), nil
}

func (c *Check) Initialise() {}

func (c *Check) Update() tree.Status {
	matched, version := c.schedule.containing(At(c.schedule.clock.Now()))
	if version != c.version {
		clear(c.fired)
		c.version = version
	}
	inside := make(map[int]bool, len(matched))
	for _, idx := range matched {
		inside[idx] = true
	}
	for idx := range c.fired {
		if !inside[idx] {
			delete(c.fired, idx)
		}
	}
	for _, idx := range matched {
		if !c.fired[idx] {
			c.fired[idx] = true
			return tree.Success
		}
	}
	return tree.Failure
}

func (c *Check) Terminate(tree.Status) {}

// NewGate builds a gate that allows its child only while the current time is
// inside one of the schedule's windows. When an allowed activation completes
// the matched entry's jitter is resampled, unless the child (a Wait, say)
// already resampled it during the activation.
func NewGate(name string, child tree.Node, s *Schedule, opts ...gate.Option) (*gate.Gate, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: gate %q has no schedule", gate.ErrConfig, name)
	}
	return gate.New(name, child, &windowPolicy{schedule: s, matched: -1}, opts...)
}

type windowPolicy struct {
	schedule *Schedule
	matched  int
	version  uint64
	draws    uint64
}

func (p *windowPolicy) Allow() bool {
	matched, version := p.schedule.containing(At(p.schedule.clock.Now()))
	if len(matched) == 0 {
		p.matched = -1
		return false
	}
	p.matched, p.version = matched[0], version
	p.draws = p.schedule.draws(p.matched)
	return true
}

func (p *windowPolicy) Finish(allowed bool, _ tree.Status) {
	if allowed {
		p.schedule.resample(p.matched, p.version, p.draws)
	}
	p.matched = -1
}

// PauseUniform is a leaf that, on each activation, draws a pause uniformly
// from [low, high] and reports Running until that much time has passed.
type PauseUniform struct {
	low, high time.Duration
	clock     Clock
	rng       *rand.Rand
	pause     time.Duration
	started   time.Time
}

var _ tree.Behaviour = (*PauseUniform)(nil)

// NewPauseUniform builds the pause leaf. Requires 0 <= low <= high.
func NewPauseUniform(name string, low, high time.Duration, opts ...Option) (*tree.Leaf, error) {
	if low < 0 || low > high {
		return nil, fmt.Errorf("%w: pause %q range [%s, %s] is invalid", gate.ErrConfig, name, low, high)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return tree.NewLeaf(name, &PauseUniform{low: low, high: high, clock: o.clock, rng: o.rng}), nil
}

func (p *PauseUniform) Initialise() {
	p.pause = p.low + jitter(p.rng, p.high-p.low)
	p.started = p.clock.Now()
}

func (p *PauseUniform) Update() tree.Status {
	if p.clock.Now().Sub(p.started) < p.pause {
		return tree.Running
	}
	return tree.Success
}

func (p *PauseUniform) Terminate(tree.Status) {}

// Pause is the duration drawn for the current activation.
func (p *PauseUniform) Pause() time.Duration { return p.pause }
