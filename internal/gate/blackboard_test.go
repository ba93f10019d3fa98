package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/tree"
)

func TestEquals_StickyWhileRunning(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	bb.Set("flag", true)
	leaf := tree.NewCounter("counter", 3, tree.Success)
	gate, err := NewEquals("if_flag", leaf, bb, "flag", true)
	require.NoError(t, err)

	gate.Tick()
	require.Equal(t, tree.Running, gate.Status())
	bb.Set("flag", false)

	statuses := []tree.Status{tree.Running}
	for range 3 {
		gate.Tick()
		statuses = append(statuses, gate.Status())
	}
	require.Equal(t, []tree.Status{tree.Running, tree.Running, tree.Running, tree.Success}, statuses)
	require.Equal(t, 4, leaf.Behaviour().(*tree.Counter).Count())

	gate.Tick()
	require.Equal(t, tree.Failure, gate.Status())
	require.False(t, gate.Allowed())
}

func TestEquals_SkipResult(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	bb.Set("mode", "idle")

	for _, skip := range []tree.Status{tree.Success, tree.Failure} {
		g, leaf := newGuarded("patrol")
		gate, err := NewEquals("if_patrol", leaf, bb, "mode", "patrol", WithSkipResult(skip))
		require.NoError(t, err)
		gate.Tick()
		requireRan(t, g, leaf, false)
		require.Equal(t, skip, gate.Status())
	}
}

func TestEquals_NumericAndMissing(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	bb.Set("count", 3)

	g, leaf := newGuarded("child")
	gate, err := NewEquals("if_three", leaf, bb, "count", 3.0)
	require.NoError(t, err)
	gate.Tick()
	requireRan(t, g, leaf, true)

	g, leaf = newGuarded("child")
	gate, err = NewEquals("if_missing", leaf, bb, "missing", 1)
	require.NoError(t, err)
	gate.Tick()
	requireRan(t, g, leaf, false)
	require.Equal(t, tree.Failure, gate.Status())
	require.False(t, bb.Exists("missing"))
}

func TestIncrementIf(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	bb.Set("successes", 0.0)
	gate, err := NewIncrementIf("count_successes", tree.NewConstant("ok", tree.Success), bb, "successes", tree.Success, 1)
	require.NoError(t, err)
	for range 3 {
		gate.Tick()
		require.Equal(t, tree.Success, gate.Status())
	}
	v, _ := bb.Get("successes")
	require.Equal(t, 3.0, v)

	bb.Set("failures", 5.0)
	gate, err = NewIncrementIf("count_failures", tree.NewConstant("bad", tree.Failure), bb, "failures", tree.Failure, 2)
	require.NoError(t, err)
	gate.Tick()
	gate.Tick()
	require.Equal(t, tree.Failure, gate.Status())
	v, _ = bb.Get("failures")
	require.Equal(t, 9.0, v)

	// condition does not match: untouched
	gate, err = NewIncrementIf("count_failures", tree.NewConstant("ok", tree.Success), bb, "failures", tree.Failure, 2)
	require.NoError(t, err)
	gate.Tick()
	v, _ = bb.Get("failures")
	require.Equal(t, 9.0, v)
}

func TestIncrementIf_EveryRunningTick(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	bb.Set("running", 0)
	gate, err := NewIncrementIf("count_running", tree.NewCounter("counter", 2, tree.Success), bb, "running", tree.Running, 1)
	require.NoError(t, err)
	for range 3 {
		gate.Tick()
	}
	v, _ := bb.Get("running")
	require.Equal(t, 2, v)
}

func TestIncrementIf_MissingKey(t *testing.T) {
	t.Parallel()

	obs := new(recordingObserver)
	bb := new(blackboard.Blackboard)
	gate, err := NewIncrementIf("inc", tree.NewConstant("ok", tree.Success), bb, "missing", tree.Success, 1, WithObserver(obs))
	require.NoError(t, err)
	gate.Tick()
	require.Equal(t, tree.Success, gate.Status())
	require.False(t, bb.Exists("missing"))
	require.Equal(t, []string{"inc:missing"}, obs.storeErrors)
}

func TestSetIf(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	gate, err := NewSetIf("mark_done", tree.NewCounter("counter", 1, tree.Success), bb, "done", tree.Success, true)
	require.NoError(t, err)

	gate.Tick()
	require.False(t, bb.Exists("done"))
	gate.Tick()
	v, ok := bb.Get("done")
	require.True(t, ok)
	require.Equal(t, true, v)
}

func TestIncrementLeaf(t *testing.T) {
	t.Parallel()

	obs := new(recordingObserver)
	bb := new(blackboard.Blackboard)
	bb.Set("n", 1)
	bb.Set("name", "x")

	leaf, err := NewIncrement("inc_n", bb, "n", 2, WithObserver(obs))
	require.NoError(t, err)
	leaf.Tick()
	require.Equal(t, tree.Success, leaf.Status())
	v, _ := bb.Get("n")
	require.Equal(t, 3, v)

	leaf, err = NewIncrement("inc_missing", bb, "missing", 1, WithObserver(obs))
	require.NoError(t, err)
	leaf.Tick()
	require.Equal(t, tree.Failure, leaf.Status())
	require.False(t, bb.Exists("missing"))

	leaf, err = NewIncrement("inc_name", bb, "name", 1, WithObserver(obs))
	require.NoError(t, err)
	leaf.Tick()
	require.Equal(t, tree.Failure, leaf.Status())
	v, _ = bb.Get("name")
	require.Equal(t, "x", v)

	require.Equal(t, []string{"inc_missing:missing", "inc_name:name"}, obs.storeErrors)
}

func TestBlackboardGates_ConfigErrors(t *testing.T) {
	t.Parallel()

	leaf := tree.NewConstant("c", tree.Success)
	_, err := NewEquals("g", leaf, nil, "k", 1)
	require.ErrorIs(t, err, ErrConfig)
	_, err = NewIncrementIf("g", leaf, nil, "k", tree.Success, 1)
	require.ErrorIs(t, err, ErrConfig)
	_, err = NewSetIf("g", leaf, nil, "k", tree.Success, 1)
	require.ErrorIs(t, err, ErrConfig)
	_, err = NewIncrement("g", nil, "k", 1)
	require.ErrorIs(t, err, ErrConfig)
}
