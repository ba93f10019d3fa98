package gate

import (
	"fmt"

	"github.com/joeycumines/go-gates/internal/tree"
)

// Alternating runs its children in strict round robin: child i is allowed for
// counts[i] consecutive ticks, then the next child takes over, wrapping around
// indefinitely.
//
// Each child is wrapped in its own ManualGate (skip result Failure) and the
// gates are composed under a priority selector. At the start of every tick,
// before any child is ticked, the plan advances:
//
//	if consecutive >= counts[index] {
//		if gates[index] is Running {
//			hold
//		}
//		deactivate gates[index]
//		index = (index + 1) % len(counts)
//		activate gates[index]
//		consecutive = 0
//	}
//	consecutive++
//
// The rotation counts ticks, not completions. A child still Running when its
// turn ends holds the rotation: it alone is ticked until it leaves Running,
// those extra ticks are not counted, and the next child then gets its full
// count. Only the current child can ever be Running, so switching never stops
// a running child.
type Alternating struct {
	name        string
	gates       []*ManualGate
	counts      []int
	index       int
	consecutive int
	selector    *tree.Selector
}

var _ tree.Node = (*Alternating)(nil)

// NewAlternating builds the coordinator. counts must have the same length as
// children, and every count must be positive.
func NewAlternating(name string, children []tree.Node, counts []int, opts ...Option) (*Alternating, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: alternating %q needs at least one child", ErrConfig, name)
	}
	if len(counts) != len(children) {
		return nil, fmt.Errorf("%w: alternating %q has %d counts for %d children", ErrConfig, name, len(counts), len(children))
	}
	for i, c := range counts {
		if c <= 0 {
			return nil, fmt.Errorf("%w: alternating %q count[%d] is %d, must be positive", ErrConfig, name, i, c)
		}
	}

	// the selector relies on blocked gates failing
	opts = append(opts[:len(opts):len(opts)], WithSkipResult(tree.Failure))

	a := &Alternating{
		name:   name,
		gates:  make([]*ManualGate, len(children)),
		counts: append([]int(nil), counts...),
	}
	nodes := make([]tree.Node, len(children))
	for i, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: alternating %q child %d is nil", ErrConfig, name, i)
		}
		g, err := NewManual("activate_"+child.Name(), child, i == 0, opts...)
		if err != nil {
			return nil, err
		}
		a.gates[i] = g
		nodes[i] = g
	}
	a.selector = tree.NewSelector(name+"_selector", nodes...)
	return a, nil
}

func (a *Alternating) Name() string { return a.name }

func (a *Alternating) Status() tree.Status { return a.selector.Status() }

// Gates returns the per-child activation gates, in order.
func (a *Alternating) Gates() []*ManualGate { return a.gates }

// Current returns the index of the child whose turn it is.
func (a *Alternating) Current() int { return a.index }

func (a *Alternating) Tick() []tree.Node {
	a.advance()
	return append(a.selector.Tick(), a)
}

func (a *Alternating) Stop(status tree.Status) {
	a.selector.Stop(status)
}

func (a *Alternating) advance() {
	if a.consecutive >= a.counts[a.index] {
		if a.gates[a.index].Status() == tree.Running {
			return
		}
		a.gates[a.index].SetActivated(false)
		a.index = (a.index + 1) % len(a.counts)
		a.gates[a.index].SetActivated(true)
		a.consecutive = 0
	}
	a.consecutive++
}
