package gate

import (
	"sync/atomic"

	"github.com/joeycumines/go-gates/internal/tree"
)

// ManualGate allows its child only while an externally controlled flag is
// set.
//
// The flag may be written by any holder of the gate, from any goroutine, at
// any time. It is read once per activation boundary, at the start of Tick, so
// a change made between ticks takes effect on the next tick (and a change made
// while the child is Running takes effect once the child completes).
type ManualGate struct {
	*Gate
	activated atomic.Bool
}

// NewManual wraps child in a gate whose initial activation is activated.
func NewManual(name string, child tree.Node, activated bool, opts ...Option) (*ManualGate, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	m := new(ManualGate)
	m.activated.Store(activated)
	m.Gate, err = newGate(name, child, PolicyFunc(m.activated.Load), o)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Activated reports the current value of the flag.
func (m *ManualGate) Activated() bool { return m.activated.Load() }

// SetActivated sets the flag read at the next activation boundary.
func (m *ManualGate) SetActivated(activated bool) { m.activated.Store(activated) }
