package gate

import (
	"fmt"
	"log/slog"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/tree"
)

// NewEquals builds a gate that allows its child only when the store variable
// key equals target (numbers compare by value, see blackboard.Equal).
//
// The variable is read once per activation boundary. While the child is
// Running the condition is not re-read, so a change to the variable cannot
// interrupt a running child; evaluation resumes once the child completes.
// A missing variable never matches, and is logged at WARN. The default skip
// result is Failure.
func NewEquals(name string, child tree.Node, store blackboard.Store, key string, target any, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: gate %q has no store", ErrConfig, name)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	logger := o.logger
	return newGate(name, child, PolicyFunc(func() bool {
		value, ok := store.Get(key)
		if !ok {
			logger.Warn("[Gate] blackboard variable does not exist",
				"gate", name,
				"key", key)
			return false
		}
		return blackboard.Equal(value, target)
	}), o)
}

// NewIncrementIf builds a decorator that always delegates to its child and,
// after every tick on which the child's status is condition, adds delta to
// the numeric store variable key.
//
// The increment fires on every such tick, not once per activation. A missing
// or non-numeric variable is logged at WARN and left untouched; the
// decorator's status is always the child's.
func NewIncrementIf(name string, child tree.Node, store blackboard.Store, key string, condition tree.Status, delta float64, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: gate %q has no store", ErrConfig, name)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newGate(name, child, &postCondition{
		condition: condition,
		effect: func() {
			incrementAndLog(o.logger, o.observer, name, store, key, delta)
		},
	}, o)
}

// NewSetIf builds a decorator that always delegates to its child and, after
// every tick on which the child's status is condition, overwrites the store
// variable key with value (creating it if needed).
func NewSetIf(name string, child tree.Node, store blackboard.Store, key string, condition tree.Status, value any, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: gate %q has no store", ErrConfig, name)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newGate(name, child, &postCondition{
		condition: condition,
		effect:    func() { store.Set(key, value) },
	}, o)
}

type postCondition struct {
	condition tree.Status
	effect    func()
}

func (p *postCondition) Allow() bool { return true }

func (p *postCondition) PostTick(allowed bool, result tree.Status) {
	if allowed && result == p.condition {
		p.effect()
	}
}

// StoreErrorObserver is optionally implemented by an Observer that wants to
// count recoverable store errors.
type StoreErrorObserver interface {
	StoreError(node, key string, err error)
}

// Increment is a leaf that adds a delta to a numeric store variable once per
// activation. It succeeds if the variable existed and was numeric, and fails
// (without touching the store) otherwise.
type Increment struct {
	name     string
	store    blackboard.Store
	key      string
	delta    float64
	logger   *slog.Logger
	observer Observer
	ok       bool
}

var _ tree.Behaviour = (*Increment)(nil)

// NewIncrement builds the increment leaf.
func NewIncrement(name string, store blackboard.Store, key string, delta float64, opts ...Option) (*tree.Leaf, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: leaf %q has no store", ErrConfig, name)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return tree.NewLeaf(name, &Increment{
		name:     name,
		store:    store,
		key:      key,
		delta:    delta,
		logger:   o.logger,
		observer: o.observer,
	}), nil
}

func (i *Increment) Initialise() {
	i.ok = incrementAndLog(i.logger, i.observer, i.name, i.store, i.key, i.delta)
}

func (i *Increment) Update() tree.Status {
	if i.ok {
		return tree.Success
	}
	return tree.Failure
}

func (i *Increment) Terminate(tree.Status) {}

func incrementAndLog(logger *slog.Logger, observer Observer, node string, store blackboard.Store, key string, delta float64) bool {
	if _, err := blackboard.Increment(store, key, delta); err != nil {
		logger.Warn("[Gate] cannot increment blackboard variable",
			"node", node,
			"key", key,
			"error", err)
		if o, ok := observer.(StoreErrorObserver); ok {
			o.StoreError(node, key, err)
		}
		return false
	}
	return true
}
