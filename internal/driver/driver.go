// Package driver assembles the gatectl demonstration tree from resolved
// settings and ticks it on a go-behaviortree ticker.
//
// The tree is:
//
//	root (selector)
//	├── pause_window (schedule gate, schedule.mode wait)
//	│   └── pause (schedule wait leaf)
//	├── count_windows (increment-if success, schedule.mode check)
//	│   └── window_opened (schedule check leaf)
//	└── count_successes (increment-if success)
//	    └── alternating
//	        ├── every_x ── every_x_task (counter, constant or uniform pause)
//	        ├── every_range ── maybe_range_task (probabilistic) ── every_range_task (counter or constant)
//	        └── [weighted_if (expression gate, if a condition is set)]
//	            └── weighted
//	                └── record_<i> (set-if success) ── tally_<i> (increment, or increment-if over attempt_<i>)
//
// The pause branch exists only when a schedule file is configured.
//
// Blackboard keys: "successes" counts successful root ticks below the pause
// branch, "weighted_<i>" counts tallies of weighted branch i, "last_pick"
// holds the index of the most recent tally (-1 before the first), and, in
// check mode, "windows" counts schedule windows entered.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/config"
	"github.com/joeycumines/go-gates/internal/gate"
	"github.com/joeycumines/go-gates/internal/metrics"
	"github.com/joeycumines/go-gates/internal/schedule"
	"github.com/joeycumines/go-gates/internal/tree"
)

// SuccessesKey is the blackboard variable counting successful ticks.
const SuccessesKey = "successes"

// LastPickKey is the blackboard variable holding the most recently tallied
// weighted branch.
const LastPickKey = "last_pick"

// WindowsKey is the blackboard variable counting schedule windows entered in
// check mode.
const WindowsKey = "windows"

// WeightedKey returns the blackboard variable counting selections of
// weighted branch i.
func WeightedKey(i int) string { return fmt.Sprintf("weighted_%d", i) }

// Options are the dependencies of Build.
type Options struct {
	Settings *config.Settings
	Logger   *slog.Logger
	// Collector, if set, observes every gate.
	Collector *metrics.Collector
	// Clock drives the pause schedule. Defaults to schedule.SystemClock.
	Clock schedule.Clock
}

// Tree is a built demonstration tree.
type Tree struct {
	Root        *tree.Selector
	Board       *blackboard.Blackboard
	Alternating *gate.Alternating
	// Schedule is nil when no schedule file is configured.
	Schedule *schedule.Schedule
}

// Build assembles the tree. Any invalid setting is reported as an error
// wrapping gate.ErrConfig or schedule.ErrInvalidRecord.
func Build(opts Options) (*Tree, error) {
	s := opts.Settings
	if s == nil {
		return nil, errors.New("driver: nil settings")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = schedule.SystemClock()
	}

	seeds := newSeeder(s.Seed)
	gateOpts := func(extra ...gate.Option) []gate.Option {
		o := []gate.Option{gate.WithLogger(logger), seeds.gate()}
		if opts.Collector != nil {
			o = append(o, gate.WithObserver(opts.Collector))
		}
		return append(o, extra...)
	}

	switch s.ScheduleMode {
	case "", "wait", "check":
	default:
		return nil, fmt.Errorf("%w: schedule mode must be wait or check, got %q", gate.ErrConfig, s.ScheduleMode)
	}

	board := new(blackboard.Blackboard)
	board.Set(SuccessesKey, 0)
	board.Set(LastPickKey, -1)

	everyXTask := task("every_x_task", s.EveryXDuration)
	if s.EveryXPauseMax > 0 {
		pause, err := schedule.NewPauseUniform("every_x_task", s.EveryXPauseMin, s.EveryXPauseMax,
			schedule.WithClock(clock),
			seeds.schedule())
		if err != nil {
			return nil, err
		}
		everyXTask = pause
	}
	everyX, err := gate.NewEveryX("every_x", everyXTask, s.EveryXMin, s.EveryXMax, gateOpts()...)
	if err != nil {
		return nil, err
	}

	skip, err := skipResult(s.ProbabilitySkip)
	if err != nil {
		return nil, err
	}
	maybe, err := gate.NewProbabilistic("maybe_range_task",
		task("every_range_task", s.EveryRangeDuration),
		s.Probability, gateOpts(gate.WithSkipResult(skip))...)
	if err != nil {
		return nil, err
	}
	everyRange, err := gate.NewEveryRange("every_range", maybe,
		s.EveryRangeMax, s.EveryRangeStart, s.EveryRangeEnd, gateOpts()...)
	if err != nil {
		return nil, err
	}

	tallies := make([]tree.Node, len(s.WeightedProbabilities))
	for i := range tallies {
		board.Set(WeightedKey(i), 0)
		tally, err := newTally(i, s.WeightedSuccess, board, gateOpts)
		if err != nil {
			return nil, err
		}
		record, err := gate.NewSetIf(fmt.Sprintf("record_%d", i), tally, board, LastPickKey, tree.Success, i, gateOpts()...)
		if err != nil {
			return nil, err
		}
		tallies[i] = record
	}
	weighted, err := gate.NewWeighted("weighted", tallies, s.WeightedProbabilities, gateOpts()...)
	if err != nil {
		return nil, err
	}
	var weightedBranch tree.Node = weighted
	if s.WeightedCondition != "" {
		cond, err := gate.NewExpression("weighted_if", weighted, board, s.WeightedCondition, gateOpts()...)
		if err != nil {
			return nil, err
		}
		weightedBranch = cond
	}

	alternating, err := gate.NewAlternating("alternating",
		[]tree.Node{everyX, everyRange, weightedBranch},
		s.AlternatingCounts, gateOpts()...)
	if err != nil {
		return nil, err
	}
	counted, err := gate.NewIncrementIf("count_successes", alternating, board, SuccessesKey, tree.Success, 1, gateOpts()...)
	if err != nil {
		return nil, err
	}

	out := &Tree{Board: board, Alternating: alternating}
	var children []tree.Node
	if s.ScheduleFile != "" {
		entries, err := schedule.Load(s.ScheduleFile)
		if err != nil {
			return nil, err
		}
		out.Schedule, err = schedule.New(entries,
			schedule.WithClock(clock),
			schedule.WithLogger(logger),
			seeds.schedule())
		if err != nil {
			return nil, err
		}
		pause, err := pauseBranch(s.ScheduleMode, out.Schedule, board, gateOpts)
		if err != nil {
			return nil, err
		}
		children = append(children, pause)
	}
	out.Root = tree.NewSelector("root", append(children, counted)...)
	return out, nil
}

// pauseBranch builds the highest priority branch of the root. In wait mode a
// schedule gate holds the tree Running for the rest of each window. In check
// mode a check leaf takes a single tick at each window entry and counts it.
func pauseBranch(mode string, s *schedule.Schedule, board *blackboard.Blackboard, gateOpts func(...gate.Option) []gate.Option) (tree.Node, error) {
	if mode == "check" {
		board.Set(WindowsKey, 0)
		check, err := schedule.NewCheck("window_opened", s)
		if err != nil {
			return nil, err
		}
		counter, err := gate.NewIncrementIf("count_windows", check, board, WindowsKey, tree.Success, 1, gateOpts()...)
		if err != nil {
			return nil, err
		}
		return counter, nil
	}
	wait, err := schedule.NewWait("pause", s)
	if err != nil {
		return nil, err
	}
	window, err := schedule.NewGate("pause_window", wait, s, gateOpts()...)
	if err != nil {
		return nil, err
	}
	return window, nil
}

// newTally builds the node counting selections of weighted branch i. When
// success is below 1 the count only happens if a random attempt succeeds,
// and a failed attempt falls through to the later branches.
func newTally(i int, success float64, board *blackboard.Blackboard, gateOpts func(...gate.Option) []gate.Option) (tree.Node, error) {
	name := fmt.Sprintf("tally_%d", i)
	if success == 1 {
		leaf, err := gate.NewIncrement(name, board, WeightedKey(i), 1, gateOpts()...)
		if err != nil {
			return nil, err
		}
		return leaf, nil
	}
	attempt, err := gate.NewRandomSuccess(fmt.Sprintf("attempt_%d", i), success, gateOpts()...)
	if err != nil {
		return nil, err
	}
	counter, err := gate.NewIncrementIf(name, attempt, board, WeightedKey(i), tree.Success, 1, gateOpts()...)
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// task is a leaf that is Running for duration ticks before succeeding, or a
// constant success when duration is not positive.
func task(name string, duration int) tree.Node {
	if duration <= 0 {
		return tree.NewConstant(name, tree.Success)
	}
	return tree.NewCounter(name, duration, tree.Success)
}

func skipResult(s string) (tree.Status, error) {
	switch s {
	case "success":
		return tree.Success, nil
	case "failure", "":
		return tree.Failure, nil
	default:
		return tree.Invalid, fmt.Errorf("%w: skip result must be success or failure, got %q", gate.ErrConfig, s)
	}
}

// seeder hands out per-node seeds derived from one root seed, or nothing
// when no seed is configured.
type seeder struct {
	rng *rand.Rand
}

func newSeeder(seed *uint64) *seeder {
	if seed == nil {
		return &seeder{}
	}
	return &seeder{rng: rand.New(rand.NewPCG(*seed, *seed))}
}

func (s *seeder) gate() gate.Option {
	if s.rng == nil {
		return nil
	}
	return gate.WithSeed(s.rng.Uint64())
}

func (s *seeder) schedule() schedule.Option {
	if s.rng == nil {
		return nil
	}
	return schedule.WithSeed(s.rng.Uint64())
}

// Run ticks t.Root every interval until ctx is done or maxTicks ticks have
// completed (maxTicks <= 0 means no limit), and returns the number of ticks.
// Each tick's visited node names are logged at DEBUG.
func Run(ctx context.Context, t *Tree, interval time.Duration, maxTicks int, logger *slog.Logger, collector *metrics.Collector) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks := 0
	root := tree.ToBehaviorTree(t.Root, func(visited []tree.Node) {
		ticks++
		if logger.Enabled(ctx, slog.LevelDebug) {
			logger.Debug("[Driver] tick",
				"tick", ticks,
				"status", t.Root.Status().String(),
				"visited", strings.Join(tree.Names(visited), ","))
		}
		if maxTicks > 0 && ticks >= maxTicks {
			cancel()
		}
	})
	if collector != nil {
		root = timed(root, t.Root, collector)
	}

	ticker := bt.NewTicker(ctx, interval, root)
	<-ticker.Done()
	if err := ticker.Err(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return ticks, fmt.Errorf("ticker stopped: %w", err)
	}
	logger.Info("[Driver] stopped", "ticks", ticks)
	return ticks, nil
}

func timed(node bt.Node, root tree.Node, collector *metrics.Collector) bt.Node {
	return bt.New(func(children []bt.Node) (bt.Status, error) {
		start := time.Now()
		status, err := children[0].Tick()
		collector.ObserveTick(root.Status(), time.Since(start))
		return status, err
	}, node)
}
