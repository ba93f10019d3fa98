package gate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/joeycumines/go-gates/internal/tree"
)

// probabilitySumTolerance absorbs float rounding when checking that weighted
// probabilities sum to 1.0.
const probabilitySumTolerance = 1e-9

// ProbabilisticGate allows its child for a whole activation with probability
// p. The draw is made at construction and redrawn every time the gate leaves
// an activation, so each new activation starts with a fresh, independent draw.
type ProbabilisticGate struct {
	*Gate
	policy *bernoulli
}

type bernoulli struct {
	p   float64
	run bool
	rng *rand.Rand
}

// NewProbabilistic builds the gate; p must lie in [0, 1].
func NewProbabilistic(name string, child tree.Node, p float64, opts ...Option) (*ProbabilisticGate, error) {
	if err := checkProbability(name, p); err != nil {
		return nil, err
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newProbabilistic(name, child, p, o)
}

func newProbabilistic(name string, child tree.Node, p float64, o *options) (*ProbabilisticGate, error) {
	policy := &bernoulli{p: p, rng: o.rng}
	policy.draw()
	g, err := newGate(name, child, policy, o)
	if err != nil {
		return nil, err
	}
	return &ProbabilisticGate{Gate: g, policy: policy}, nil
}

// Probability is the configured probability of running the child.
func (g *ProbabilisticGate) Probability() float64 { return g.policy.p }

// WillRun reports the draw that the next activation will use.
func (g *ProbabilisticGate) WillRun() bool { return g.policy.run }

func (b *bernoulli) draw() { b.run = b.rng.Float64() < b.p }

func (b *bernoulli) Allow() bool { return b.run }

func (b *bernoulli) Finish(bool, tree.Status) { b.draw() }

// NewWeighted builds an exclusive random choice between children, selecting
// child i with marginal probability probabilities[i] on each activation.
//
// Children are arranged as a cascade under a priority selector. With cum the
// mass of all earlier children, child i is wrapped in a ProbabilisticGate with
// conditional probability p_i / (1 - cum); reaching child i has probability
// 1 - cum, so its marginal probability is p_i. The first child whose
// conditional probability reaches 1 (always the last child, by construction)
// is inserted unwrapped and ends the cascade.
//
// probabilities must have one entry per child, each in [0, 1], summing to 1.
// Every gate in the cascade gets its own random source derived from the
// options, so WithSeed makes the whole composite reproducible.
func NewWeighted(name string, children []tree.Node, probabilities []float64, opts ...Option) (*tree.Selector, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: weighted %q needs at least one child", ErrConfig, name)
	}
	if len(probabilities) != len(children) {
		return nil, fmt.Errorf("%w: weighted %q has %d probabilities for %d children", ErrConfig, name, len(probabilities), len(children))
	}
	var sum float64
	for _, p := range probabilities {
		if err := checkProbability(name, p); err != nil {
			return nil, err
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilitySumTolerance {
		return nil, fmt.Errorf("%w: weighted %q probabilities sum to %v, must sum to 1", ErrConfig, name, sum)
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	// blocked gates must fail so the selector falls through to the next child
	o.skip = tree.Failure

	nodes := make([]tree.Node, 0, len(children))
	var cum float64
	for i, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: weighted %q child %d is nil", ErrConfig, name, i)
		}
		conditional := 1.0
		if remaining := 1 - cum; remaining > 0 {
			conditional = probabilities[i] / remaining
		}
		if conditional >= 1 || i == len(children)-1 {
			nodes = append(nodes, child)
			break
		}
		co := *o
		co.rng = o.fork()
		g, err := newProbabilistic("random_run_"+child.Name(), child, conditional, &co)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, g)
		cum += probabilities[i]
	}
	if len(nodes) < len(children) {
		o.logger.Debug("[Gate] weighted cascade ends early",
			"name", name,
			"reachable", len(nodes),
			"children", len(children))
	}
	return tree.NewSelector(name, nodes...), nil
}

// RandomSuccess is a leaf that succeeds with probability p on every tick and
// fails otherwise.
type RandomSuccess struct {
	p   float64
	rng *rand.Rand
}

var _ tree.Behaviour = (*RandomSuccess)(nil)

// NewRandomSuccess builds the leaf; p must lie in [0, 1].
func NewRandomSuccess(name string, p float64, opts ...Option) (*tree.Leaf, error) {
	if err := checkProbability(name, p); err != nil {
		return nil, err
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return tree.NewLeaf(name, &RandomSuccess{p: p, rng: o.rng}), nil
}

func (r *RandomSuccess) Initialise() {}

func (r *RandomSuccess) Update() tree.Status {
	if r.rng.Float64() < r.p {
		return tree.Success
	}
	return tree.Failure
}

func (r *RandomSuccess) Terminate(tree.Status) {}

func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %q probability %v must be in [0, 1]", ErrConfig, name, p)
	}
	return nil
}
