// Package gate implements conditional-execution decorators for behaviour trees.
//
// A Gate owns exactly one child and, on every tick, asks its Policy whether to
// ALLOW or BLOCK:
//
//   - ALLOW delegates the child's full lifecycle for that tick, and the gate
//     reports the child's status.
//   - BLOCK does not touch the child at all (its status is left exactly as it
//     was) and the gate reports its configured skip result, Success or Failure.
//
// The policy is consulted only at activation boundaries, that is on ticks
// where the gate was not left Running by the previous tick. Once a child has
// been allowed into Running the gate keeps delegating until the child leaves
// Running, whatever the policy would say in the meantime.
//
// The package also provides composites built from gates (Alternating,
// NewWeighted), blackboard-driven gates, and a few standalone leaves.
//
// All nodes are designed to be ticked from a single goroutine. The only
// exception is ManualGate's activation flag, which may be written from any
// goroutine between ticks.
package gate

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-gates/internal/tree"
)

// ErrConfig is wrapped by every construction-time validation failure.
var ErrConfig = errors.New("gate: invalid configuration")

// Policy decides, at each activation boundary, whether the gate allows its
// child to run.
type Policy interface {
	Allow() bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func() bool

func (f PolicyFunc) Allow() bool { return f() }

// PostTicker is implemented by policies that need to observe every tick,
// after the gate's status for that tick is known.
type PostTicker interface {
	PostTick(allowed bool, result tree.Status)
}

// Finisher is implemented by policies that need to know when the gate leaves
// an activation, i.e. after a tick that did not end Running, or when the gate
// is stopped.
type Finisher interface {
	Finish(allowed bool, result tree.Status)
}

// Observer receives a notification after every gate tick.
type Observer interface {
	Decision(gate string, allowed bool, result tree.Status)
}

// Gate is the generic decorator. Specific gates are built by pairing it with
// a Policy.
type Gate struct {
	name     string
	child    tree.Node
	policy   Policy
	skip     tree.Status
	observer Observer

	status  tree.Status
	allowed bool
}

var _ tree.Node = (*Gate)(nil)

// New builds a gate around child. The default skip result is Failure.
func New(name string, child tree.Node, policy Policy, opts ...Option) (*Gate, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newGate(name, child, policy, o)
}

func newGate(name string, child tree.Node, policy Policy, o *options) (*Gate, error) {
	if child == nil {
		return nil, fmt.Errorf("%w: gate %q has no child", ErrConfig, name)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: gate %q has no policy", ErrConfig, name)
	}
	return &Gate{
		name:     name,
		child:    child,
		policy:   policy,
		skip:     o.skip,
		observer: o.observer,
	}, nil
}

func (g *Gate) Name() string { return g.name }

func (g *Gate) Status() tree.Status { return g.status }

// Child returns the decorated node.
func (g *Gate) Child() tree.Node { return g.child }

// SkipResult is the status reported on ticks where the gate blocks.
func (g *Gate) SkipResult() tree.Status { return g.skip }

// Allowed reports whether the most recent activation delegated to the child.
func (g *Gate) Allowed() bool { return g.allowed }

func (g *Gate) Tick() []tree.Node {
	if g.status != tree.Running {
		g.allowed = g.policy.Allow()
	}

	var visited []tree.Node
	if g.allowed {
		visited = g.child.Tick()
		g.status = g.child.Status()
	} else {
		g.status = g.skip
	}

	if p, ok := g.policy.(PostTicker); ok {
		p.PostTick(g.allowed, g.status)
	}
	if g.observer != nil {
		g.observer.Decision(g.name, g.allowed, g.status)
	}
	if g.status != tree.Running {
		g.finish()
	}

	return append(visited, g)
}

func (g *Gate) Stop(status tree.Status) {
	wasRunning := g.status == tree.Running
	if g.allowed && g.child.Status() == tree.Running {
		g.child.Stop(tree.Invalid)
	}
	g.status = status
	if wasRunning {
		g.finish()
	}
}

func (g *Gate) finish() {
	if f, ok := g.policy.(Finisher); ok {
		f.Finish(g.allowed, g.status)
	}
}
