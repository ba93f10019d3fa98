// Package internal_test contains performance benchmarks and regression tests for go-gates.
package internal_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/config"
	"github.com/joeycumines/go-gates/internal/driver"
	"github.com/joeycumines/go-gates/internal/gate"
	"github.com/joeycumines/go-gates/internal/schedule"
	"github.com/joeycumines/go-gates/internal/storage"
	"github.com/joeycumines/go-gates/internal/tree"
)

// Performance thresholds (in nanoseconds), deliberately loose.
const (
	thresholdDriverTick   = 50000
	thresholdWeightedTick = 20000
	thresholdSettings     = 500000
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func buildDriver(tb testing.TB) *driver.Tree {
	tb.Helper()
	s, err := config.DefaultSchema().Settings(config.NewConfig())
	if err != nil {
		tb.Fatalf("settings: %v", err)
	}
	seed := uint64(1)
	s.Seed = &seed
	tr, err := driver.Build(driver.Options{Settings: s, Logger: quietLogger()})
	if err != nil {
		tb.Fatalf("build: %v", err)
	}
	return tr
}

// BenchmarkGates benchmarks ticking individual gates and the full driver tree.
func BenchmarkGates(b *testing.B) {
	b.Run("EveryX", func(b *testing.B) {
		g, err := gate.NewEveryX("every_x", tree.NewConstant("task", tree.Success), 2, 4, gate.WithSeed(1))
		if err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			g.Tick()
		}
	})

	b.Run("Weighted", func(b *testing.B) {
		children := []tree.Node{
			tree.NewConstant("a", tree.Success),
			tree.NewConstant("b", tree.Success),
			tree.NewConstant("c", tree.Success),
		}
		w, err := gate.NewWeighted("weighted", children, []float64{0.2, 0.3, 0.5}, gate.WithSeed(1))
		if err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w.Tick()
		}
	})

	b.Run("Expression", func(b *testing.B) {
		board := new(blackboard.Blackboard)
		board.Set("battery", 80)
		g, err := gate.NewExpression("charged", tree.NewConstant("task", tree.Success), board, "battery > 20")
		if err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			g.Tick()
		}
	})

	b.Run("DriverTree", func(b *testing.B) {
		tr := buildDriver(b)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tr.Root.Tick()
		}
	})
}

// BenchmarkSchedule benchmarks the time-of-day window checks.
func BenchmarkSchedule(b *testing.B) {
	start, _ := schedule.ParseTimeOfDay("22:00:00")
	stop, _ := schedule.ParseTimeOfDay("02:00:00")
	now, _ := schedule.ParseTimeOfDay("23:30:00")

	b.Run("Contains", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = schedule.Contains(start, stop, now)
		}
	})

	b.Run("Active", func(b *testing.B) {
		entry, err := schedule.NewEntry(start, stop, 15*time.Minute)
		if err != nil {
			b.Fatal(err)
		}
		s, err := schedule.New([]schedule.Entry{entry}, schedule.WithSeed(1))
		if err != nil {
			b.Fatal(err)
		}
		t := time.Date(2024, time.March, 4, 23, 30, 0, 0, time.UTC)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = s.Active(t)
		}
	})
}

// BenchmarkConfigLoading benchmarks configuration loading and resolution.
func BenchmarkConfigLoading(b *testing.B) {
	const content = `# Test configuration
tick-interval 10ms
seed 3
[alternating]
counts 2,2,2
[weighted]
probabilities 0.1,0.2,0.7
`

	b.Run("LoadFromReader", func(b *testing.B) {
		reader := strings.NewReader(content)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := config.LoadFromReader(reader); err != nil {
				b.Fatalf("failed to load config: %v", err)
			}
			_, _ = reader.Seek(0, io.SeekStart)
		}
	})

	b.Run("Settings", func(b *testing.B) {
		cfg, err := config.LoadFromReader(strings.NewReader(content))
		if err != nil {
			b.Fatal(err)
		}
		schema := config.DefaultSchema()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := schema.Settings(cfg); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkStateSave benchmarks persisting a blackboard snapshot.
func BenchmarkStateSave(b *testing.B) {
	f, err := storage.Open(filepath.Join(b.TempDir(), "state.json"))
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()
	tr := buildDriver(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := f.Save(&storage.State{Values: tr.Board.Snapshot()}); err != nil {
			b.Fatal(err)
		}
	}
}

// TestPerformanceRegression tests that critical operations complete within acceptable thresholds.
func TestPerformanceRegression(t *testing.T) {
	t.Run("DriverTick", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping in short mode")
		}
		tr := buildDriver(t)
		const iterations = 10000
		start := time.Now()
		for i := 0; i < iterations; i++ {
			tr.Root.Tick()
		}
		avg := time.Since(start).Nanoseconds() / iterations
		if avg > thresholdDriverTick {
			t.Errorf("driver tick too slow: avg %d ns (threshold: %d ns)", avg, thresholdDriverTick)
		}
		t.Logf("driver tick: avg %d ns (threshold: %d ns)", avg, thresholdDriverTick)
	})

	t.Run("WeightedTick", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping in short mode")
		}
		children := make([]tree.Node, 8)
		probabilities := make([]float64, 8)
		for i := range children {
			children[i] = tree.NewConstant("leaf", tree.Success)
			probabilities[i] = 0.125
		}
		w, err := gate.NewWeighted("weighted", children, probabilities, gate.WithSeed(1))
		if err != nil {
			t.Fatal(err)
		}
		const iterations = 10000
		start := time.Now()
		for i := 0; i < iterations; i++ {
			w.Tick()
		}
		avg := time.Since(start).Nanoseconds() / iterations
		if avg > thresholdWeightedTick {
			t.Errorf("weighted tick too slow: avg %d ns (threshold: %d ns)", avg, thresholdWeightedTick)
		}
	})

	t.Run("Settings", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping in short mode")
		}
		schema := config.DefaultSchema()
		cfg := config.NewConfig()
		const iterations = 1000
		start := time.Now()
		for i := 0; i < iterations; i++ {
			if _, err := schema.Settings(cfg); err != nil {
				t.Fatal(err)
			}
		}
		avg := time.Since(start).Nanoseconds() / iterations
		if avg > thresholdSettings {
			t.Errorf("settings resolution too slow: avg %d ns (threshold: %d ns)", avg, thresholdSettings)
		}
	})
}
