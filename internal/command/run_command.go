package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-gates/internal/config"
	"github.com/joeycumines/go-gates/internal/driver"
	"github.com/joeycumines/go-gates/internal/metrics"
	"github.com/joeycumines/go-gates/internal/schedule"
	"github.com/joeycumines/go-gates/internal/storage"
)

// RunCommand builds the gate tree from configuration and ticks it.
type RunCommand struct {
	*BaseCommand
	configPath  string
	ticks       int
	interval    time.Duration
	seed        string
	logLevel    string
	metricsAddr string
	stateFile   string
	// ctxFactory creates the execution context. If nil, the context is
	// cancelled by SIGINT or SIGTERM.
	ctxFactory func() (context.Context, context.CancelFunc)
	// clock overrides the schedule clock.
	clock schedule.Clock
}

// NewRunCommand returns a run command reading configPath unless the
// -config flag says otherwise.
func NewRunCommand(configPath string) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Tick the gate tree until interrupted or the tick limit is reached",
			"run [-config path] [-ticks n] [-interval d] [-seed n] [-state path]",
		),
		configPath: configPath,
		ticks:      -1,
	}
}

func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", c.configPath, "Path to the config file")
	fs.IntVar(&c.ticks, "ticks", -1, "Stop after this many ticks, 0 for no limit (overrides max-ticks)")
	fs.DurationVar(&c.interval, "interval", 0, "Time between ticks (overrides tick-interval)")
	fs.StringVar(&c.seed, "seed", "", "Seed for every random gate (overrides seed)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	fs.StringVar(&c.stateFile, "state", "", "Restore the blackboard from, and save it to, this JSON file (overrides state.file)")
}

func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if c.ctxFactory != nil {
		ctx, cancel = c.ctxFactory()
	} else {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
	defer cancel()

	settings, err := c.settings()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: settings.LogLevel})).
		With("run", runID)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	tr, err := driver.Build(driver.Options{
		Settings:  settings,
		Logger:    logger,
		Collector: collector,
		Clock:     c.clock,
	})
	if err != nil {
		return err
	}

	var state *storage.StateFile
	if settings.StateFile != "" {
		if state, err = restore(settings.StateFile, tr, logger); err != nil {
			return err
		}
		defer func() { _ = state.Close() }()
	}

	if tr.Schedule != nil && settings.ScheduleWatch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		done, err := schedule.WatchSchedule(watchCtx, settings.ScheduleFile, tr.Schedule)
		if err != nil {
			stopWatch()
			return err
		}
		defer func() {
			stopWatch()
			<-done
		}()
	}

	logger.Info("[Run] starting",
		"interval", settings.TickInterval,
		"max_ticks", settings.MaxTicks,
		"schedule", settings.ScheduleFile)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()
	if settings.MetricsAddr != "" {
		if err := serveMetrics(runCtx, g, settings.MetricsAddr, reg, logger); err != nil {
			return err
		}
	}
	g.Go(func() error {
		// the tick limit ends the whole group
		defer stop()
		_, err := driver.Run(runCtx, tr, settings.TickInterval, settings.MaxTicks, logger, collector)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot := tr.Board.Snapshot()
	if state != nil {
		if err := state.Save(&storage.State{RunID: runID, Values: snapshot}); err != nil {
			return err
		}
		logger.Info("[Run] state saved", "path", state.Path(), "keys", len(snapshot))
	}
	_, _ = fmt.Fprintln(stdout, "Blackboard:")
	for _, key := range sortedKeys(snapshot) {
		_, _ = fmt.Fprintf(stdout, "  %s = %v\n", key, snapshot[key])
	}
	return nil
}

// settings loads the config file and applies the flag overrides.
func (c *RunCommand) settings() (*config.Settings, error) {
	cfg, err := config.LoadFromPath(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.seed != "" {
		cfg.SetGlobalOption("seed", c.seed)
	}
	if c.logLevel != "" {
		cfg.SetGlobalOption("log.level", c.logLevel)
	}
	settings, err := config.DefaultSchema().Settings(cfg)
	if err != nil {
		return nil, err
	}
	if c.seed != "" {
		// the flag beats GATECTL_SEED too
		seed, err := strconv.ParseUint(c.seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -seed %q: %w", c.seed, err)
		}
		settings.Seed = &seed
	}
	if c.logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(c.logLevel))); err != nil {
			return nil, fmt.Errorf("invalid -log-level %q: %w", c.logLevel, err)
		}
		settings.LogLevel = level
	}
	if c.ticks >= 0 {
		settings.MaxTicks = c.ticks
	}
	if c.interval > 0 {
		settings.TickInterval = c.interval
	}
	if c.metricsAddr != "" {
		settings.MetricsAddr = c.metricsAddr
	}
	if c.stateFile != "" {
		settings.StateFile = c.stateFile
	}
	return settings, nil
}

// restore locks the state file and copies any saved values onto the
// blackboard, overriding the initial values.
func restore(path string, tr *driver.Tree, logger *slog.Logger) (*storage.StateFile, error) {
	state, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	saved, err := state.Load()
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	if saved != nil {
		for key, value := range saved.Values {
			tr.Board.Set(key, value)
		}
		logger.Info("[Run] state restored", "path", path, "keys", len(saved.Values), "from_run", saved.RunID)
	}
	return state, nil
}

// serveMetrics serves reg on addr/metrics as part of g, until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("[Run] serving metrics", "addr", ln.Addr().String())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}
