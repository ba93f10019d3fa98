package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-gates/internal/tree"
)

// guarded records whether it was initialised and updated since the last
// reset, so tests can prove a blocked child was never touched.
type guarded struct {
	initialised bool
	updated     bool
	terminated  int
	result      tree.Status
}

func (g *guarded) Initialise() { g.initialised = true }

func (g *guarded) Update() tree.Status {
	g.updated = true
	if g.result == tree.Invalid {
		return tree.Success
	}
	return g.result
}

func (g *guarded) Terminate(tree.Status) { g.terminated++ }

func (g *guarded) reset() {
	g.initialised = false
	g.updated = false
}

func newGuarded(name string) (*guarded, *tree.Leaf) {
	g := new(guarded)
	return g, tree.NewLeaf(name, g)
}

func requireRan(t *testing.T, g *guarded, leaf *tree.Leaf, ran bool) {
	t.Helper()
	require.Equal(t, ran, g.initialised, "initialised")
	require.Equal(t, ran, g.updated, "updated")
	if !ran {
		require.NotEqual(t, tree.Running, leaf.Status())
	}
}

type observed struct {
	gate    string
	allowed bool
	result  tree.Status
}

type recordingObserver struct {
	decisions   []observed
	storeErrors []string
}

func (r *recordingObserver) Decision(gate string, allowed bool, result tree.Status) {
	r.decisions = append(r.decisions, observed{gate, allowed, result})
}

func (r *recordingObserver) StoreError(node, key string, err error) {
	r.storeErrors = append(r.storeErrors, node+":"+key)
}
