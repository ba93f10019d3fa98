package driver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/config"
	"github.com/joeycumines/go-gates/internal/gate"
	"github.com/joeycumines/go-gates/internal/metrics"
	"github.com/joeycumines/go-gates/internal/schedule"
	"github.com/joeycumines/go-gates/internal/testutil"
	"github.com/joeycumines/go-gates/internal/tree"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func settings(t *testing.T, c *config.Config) *config.Settings {
	t.Helper()
	if c == nil {
		c = config.NewConfig()
	}
	s, err := config.DefaultSchema().Settings(c)
	require.NoError(t, err)
	seed := uint64(5)
	s.Seed = &seed
	return s
}

func number(t *testing.T, b *blackboard.Blackboard, key string) float64 {
	t.Helper()
	v, ok := b.Get(key)
	require.True(t, ok, key)
	f, ok := blackboard.AsFloat(v)
	require.True(t, ok, key)
	return f
}

func TestBuild_Structure(t *testing.T) {
	t.Parallel()

	tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
	require.NoError(t, err)
	require.Nil(t, tr.Schedule)
	require.Len(t, tr.Root.Children(), 1)
	require.Equal(t, "count_successes", tr.Root.Children()[0].Name())
	require.Len(t, tr.Alternating.Gates(), 3)
	require.Equal(t, "activate_every_x", tr.Alternating.Gates()[0].Name())
	require.Equal(t, "activate_weighted", tr.Alternating.Gates()[2].Name())
	require.ElementsMatch(t, []string{SuccessesKey, LastPickKey, "weighted_0", "weighted_1", "weighted_2"}, tr.Board.Keys())

	every, ok := tr.Alternating.Gates()[0].Child().(*gate.EveryXGate)
	require.True(t, ok)
	leaf, ok := every.Child().(*tree.Leaf)
	require.True(t, ok)
	_, ok = leaf.Behaviour().(*tree.Counter)
	require.True(t, ok)
}

func TestBuild_Ticks(t *testing.T) {
	t.Parallel()

	tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
	require.NoError(t, err)

	// counts 3,2,1 give the weighted branch one tick per rotation, and a
	// rotation lasts at least six ticks
	ticks, rotations := 0, 0
	for rotations < 10 {
		prev := tr.Alternating.Current()
		tr.Root.Tick()
		ticks++
		require.NotEqual(t, tree.Invalid, tr.Root.Status())
		if prev == 2 && tr.Alternating.Current() == 0 {
			rotations++
		}
		require.Less(t, ticks, 1000)
	}
	require.GreaterOrEqual(t, ticks, 61)

	var tallies float64
	for i := range 3 {
		tallies += number(t, tr.Board, WeightedKey(i))
	}
	require.Equal(t, 10.0, tallies)
	require.GreaterOrEqual(t, number(t, tr.Board, SuccessesKey), 10.0)
}

func TestBuild_TicksExactTurns(t *testing.T) {
	t.Parallel()

	s := settings(t, nil)
	s.EveryXDuration = 0
	s.EveryRangeDuration = 0
	tr, err := Build(Options{Settings: s, Logger: quiet()})
	require.NoError(t, err)

	// single-tick tasks never hold the rotation
	want := []int{0, 0, 0, 1, 1, 2}
	for i := range 60 {
		tr.Root.Tick()
		require.Equal(t, want[i%len(want)], tr.Alternating.Current(), "tick %d", i+1)
	}

	var tallies float64
	for i := range 3 {
		tallies += number(t, tr.Board, WeightedKey(i))
	}
	require.Equal(t, 10.0, tallies)
	require.GreaterOrEqual(t, number(t, tr.Board, SuccessesKey), 10.0)
}

func TestBuild_Reproducible(t *testing.T) {
	t.Parallel()

	run := func() map[string]any {
		tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
		require.NoError(t, err)
		for range 120 {
			tr.Root.Tick()
		}
		return tr.Board.Snapshot()
	}
	require.Equal(t, run(), run())
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	s := settings(t, nil)
	s.AlternatingCounts = []int{1, 1}
	_, err := Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.ProbabilitySkip = "maybe"
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.WeightedProbabilities = []float64{0.5, 0.6}
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.WeightedSuccess = 1.5
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.WeightedCondition = "successes <"
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.ScheduleMode = "sometimes"
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	s = settings(t, nil)
	s.EveryXPauseMin, s.EveryXPauseMax = time.Minute, time.Second
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, gate.ErrConfig)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- start: \"25:00:00\"\n  stop: \"01:00:00\"\n"), 0o600))
	s = settings(t, nil)
	s.ScheduleFile = bad
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.ErrorIs(t, err, schedule.ErrInvalidRecord)

	s = settings(t, nil)
	s.ScheduleFile = filepath.Join(dir, "missing.yaml")
	_, err = Build(Options{Settings: s, Logger: quiet()})
	require.Error(t, err)

	_, err = Build(Options{})
	require.Error(t, err)
}

func TestBuild_PauseWindow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- start: \"10:00:00\"\n  stop: \"12:00:00\"\n"), 0o600))
	s := settings(t, nil)
	s.ScheduleFile = path
	clock := testutil.At(11, 0, 0)

	tr, err := Build(Options{Settings: s, Logger: quiet(), Clock: clock})
	require.NoError(t, err)
	require.NotNil(t, tr.Schedule)
	require.Len(t, tr.Root.Children(), 2)

	visited := tree.Names(tr.Root.Tick())
	require.Equal(t, tree.Running, tr.Root.Status())
	require.Contains(t, visited, "pause")
	require.NotContains(t, visited, "count_successes")

	clock.Advance(30 * time.Minute)
	tr.Root.Tick()
	require.Equal(t, tree.Running, tr.Root.Status())

	clock.Set(testutil.At(12, 0, 1).Now())
	tr.Root.Tick()
	require.Equal(t, tree.Success, tr.Root.Status())
	require.Zero(t, number(t, tr.Board, SuccessesKey))

	visited = tree.Names(tr.Root.Tick())
	require.Contains(t, visited, "count_successes")
	require.NotContains(t, visited, "pause")
}

func TestRun_MaxTicks(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	s := settings(t, nil)
	tr, err := Build(Options{Settings: s, Logger: quiet(), Collector: collector})
	require.NoError(t, err)

	ticks, err := Run(context.Background(), tr, time.Millisecond, 12, quiet(), collector)
	require.NoError(t, err)
	require.Equal(t, 12, ticks)
	require.Equal(t, 1, promtest.CollectAndCount(collector.TickDurationSeconds))
	require.Positive(t, promtest.CollectAndCount(collector.DecisionsTotal))
}

func TestRun_Cancel(t *testing.T) {
	t.Parallel()

	tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ticks, err := Run(ctx, tr, time.Millisecond, 0, quiet(), nil)
	require.NoError(t, err)
	require.Positive(t, ticks)
}

func TestBuild_FirstSuccess(t *testing.T) {
	t.Parallel()

	tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
	require.NoError(t, err)

	ticks, err := testutil.TickUntil(func() { tr.Root.Tick() }, func() bool {
		return number(t, tr.Board, SuccessesKey) >= 1
	}, 12)
	require.NoError(t, err)
	// every_x completes by the fifth tick, or never fires and the weighted
	// branch succeeds on the sixth
	require.LessOrEqual(t, ticks, 6)
	require.Equal(t, tree.Success, tr.Root.Status())
}

func TestBuild_LastPick(t *testing.T) {
	t.Parallel()

	tr, err := Build(Options{Settings: settings(t, nil), Logger: quiet()})
	require.NoError(t, err)
	require.Equal(t, -1.0, number(t, tr.Board, LastPickKey))

	for range 60 {
		tr.Root.Tick()
		if tr.Alternating.Current() != 2 {
			continue
		}
		// the weighted branch ran this tick, and recorded its pick
		pick := int(number(t, tr.Board, LastPickKey))
		require.GreaterOrEqual(t, pick, 0)
		require.Less(t, pick, 3)
		require.Positive(t, number(t, tr.Board, WeightedKey(pick)))
	}
}

func TestBuild_WeightedCondition(t *testing.T) {
	t.Parallel()

	s := settings(t, nil)
	s.WeightedCondition = "successes < 3"
	tr, err := Build(Options{Settings: s, Logger: quiet()})
	require.NoError(t, err)
	require.Equal(t, "activate_weighted_if", tr.Alternating.Gates()[2].Name())

	for range 120 {
		tr.Root.Tick()
	}
	// every tally is also a success, so at most three can pass the condition
	var tallies float64
	for i := range 3 {
		tallies += number(t, tr.Board, WeightedKey(i))
	}
	require.LessOrEqual(t, tallies, 3.0)
	require.Greater(t, number(t, tr.Board, SuccessesKey), 3.0)
}

func TestBuild_WeightedSuccess(t *testing.T) {
	t.Parallel()

	s := settings(t, nil)
	s.WeightedSuccess = 0
	tr, err := Build(Options{Settings: s, Logger: quiet()})
	require.NoError(t, err)

	for range 60 {
		visited := tree.Names(tr.Root.Tick())
		if tr.Alternating.Current() == 2 {
			require.Contains(t, visited, "attempt_2")
			require.Equal(t, tree.Failure, tr.Alternating.Status())
		}
	}
	for i := range 3 {
		require.Zero(t, number(t, tr.Board, WeightedKey(i)))
	}
	require.Equal(t, -1.0, number(t, tr.Board, LastPickKey))
}

func TestBuild_CheckMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- start: \"10:00:00\"\n  stop: \"12:00:00\"\n"), 0o600))
	s := settings(t, nil)
	s.ScheduleFile = path
	s.ScheduleMode = "check"
	clock := testutil.At(11, 0, 0)

	tr, err := Build(Options{Settings: s, Logger: quiet(), Clock: clock})
	require.NoError(t, err)
	require.Equal(t, "count_windows", tr.Root.Children()[0].Name())
	require.Zero(t, number(t, tr.Board, WindowsKey))

	// entering the window takes one tick, then the work carries on
	visited := tree.Names(tr.Root.Tick())
	require.Contains(t, visited, "window_opened")
	require.NotContains(t, visited, "count_successes")
	require.Equal(t, tree.Success, tr.Root.Status())
	require.Equal(t, 1.0, number(t, tr.Board, WindowsKey))

	for range 5 {
		visited = tree.Names(tr.Root.Tick())
		require.Contains(t, visited, "count_successes")
	}
	require.Equal(t, 1.0, number(t, tr.Board, WindowsKey))

	clock.Set(testutil.At(13, 0, 0).Now())
	tr.Root.Tick()
	clock.Set(testutil.At(11, 30, 0).Now())
	tr.Root.Tick()
	require.Equal(t, 2.0, number(t, tr.Board, WindowsKey))
}

func TestBuild_PauseUniformTask(t *testing.T) {
	t.Parallel()

	s := settings(t, nil)
	s.EveryXMin, s.EveryXMax = 1, 1
	s.EveryXPauseMin, s.EveryXPauseMax = time.Minute, time.Minute
	clock := testutil.At(9, 0, 0)
	tr, err := Build(Options{Settings: s, Logger: quiet(), Clock: clock})
	require.NoError(t, err)

	every := tr.Alternating.Gates()[0].Child().(*gate.EveryXGate)
	task := every.Child().(*tree.Leaf)
	_, ok := task.Behaviour().(*schedule.PauseUniform)
	require.True(t, ok)

	// the pause outlasts the turn, so the rotation holds until it ends
	for i := range 10 {
		tr.Root.Tick()
		require.Equal(t, tree.Running, task.Status(), "tick %d", i+1)
		require.Equal(t, 0, tr.Alternating.Current())
	}
	clock.Advance(time.Minute)
	tr.Root.Tick()
	require.Equal(t, tree.Success, task.Status())
	require.Equal(t, 1.0, number(t, tr.Board, SuccessesKey))
	tr.Root.Tick()
	require.Equal(t, 1, tr.Alternating.Current())
}
