package gate

import (
	"fmt"
	"math/rand/v2"

	"github.com/joeycumines/go-gates/internal/tree"
)

// EveryXGate allows its child once every X ticks, where X is drawn uniformly
// from an inclusive range and redrawn each time an allowed activation
// completes.
//
// The countdown starts at X-1: blocked ticks decrement it, and the first tick
// that finds it at zero is allowed. With a range of (K, K) the child therefore
// runs on ticks K, 2K, 3K, ...
type EveryXGate struct {
	*Gate
	policy *everyX
}

type everyX struct {
	lo, hi    int
	remaining int
	rng       *rand.Rand
}

// NewEveryX builds the gate for the inclusive range [lo, hi], lo >= 1.
func NewEveryX(name string, child tree.Node, lo, hi int, opts ...Option) (*EveryXGate, error) {
	if lo < 1 {
		return nil, fmt.Errorf("%w: every-x %q lower bound %d must be at least 1", ErrConfig, name, lo)
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: every-x %q range (%d, %d) is inverted", ErrConfig, name, lo, hi)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	p := &everyX{lo: lo, hi: hi, rng: o.rng}
	p.resample()
	g, err := newGate(name, child, p, o)
	if err != nil {
		return nil, err
	}
	return &EveryXGate{Gate: g, policy: p}, nil
}

// Remaining is the number of ticks still to be blocked before the child is
// allowed again.
func (g *EveryXGate) Remaining() int { return g.policy.remaining }

func (p *everyX) resample() {
	p.remaining = p.lo + p.rng.IntN(p.hi-p.lo+1) - 1
}

func (p *everyX) Allow() bool {
	if p.remaining > 0 {
		p.remaining--
		return false
	}
	return true
}

func (p *everyX) Finish(allowed bool, _ tree.Status) {
	if allowed {
		p.resample()
	}
}

// EveryRangeGate allows its child on a fixed window of a repeating cycle.
//
// A 1-based iteration counter advances after every tick and wraps back to 1
// once it exceeds maxRange; the child is allowed whenever the counter lies in
// the inclusive window [lo, hi]. For maxRange 6 and window (4, 6):
//
//	S S S E E E S S S E E E ...
type EveryRangeGate struct {
	*Gate
	policy *everyRange
}

type everyRange struct {
	maxRange  int
	lo, hi    int
	iteration int
}

// NewEveryRange builds the gate. Requires 1 <= lo <= hi <= maxRange.
func NewEveryRange(name string, child tree.Node, maxRange, lo, hi int, opts ...Option) (*EveryRangeGate, error) {
	switch {
	case maxRange < 1:
		return nil, fmt.Errorf("%w: every-range %q max range %d must be at least 1", ErrConfig, name, maxRange)
	case lo < 1:
		return nil, fmt.Errorf("%w: every-range %q window start %d must be at least 1", ErrConfig, name, lo)
	case lo > hi:
		return nil, fmt.Errorf("%w: every-range %q window (%d, %d) is inverted", ErrConfig, name, lo, hi)
	case hi > maxRange:
		return nil, fmt.Errorf("%w: every-range %q window end %d exceeds max range %d", ErrConfig, name, hi, maxRange)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	p := &everyRange{maxRange: maxRange, lo: lo, hi: hi, iteration: 1}
	g, err := newGate(name, child, p, o)
	if err != nil {
		return nil, err
	}
	return &EveryRangeGate{Gate: g, policy: p}, nil
}

// Iteration is the 1-based position in the cycle of the next tick.
func (g *EveryRangeGate) Iteration() int { return g.policy.iteration }

func (p *everyRange) Allow() bool {
	return p.lo <= p.iteration && p.iteration <= p.hi
}

func (p *everyRange) PostTick(bool, tree.Status) {
	p.iteration++
	if p.iteration > p.maxRange {
		p.iteration = 1
	}
}
