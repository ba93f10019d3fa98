package schedule

import (
	"errors"
	"log/slog"
	"math/rand/v2"
)

// Option configures a Schedule or a PauseUniform leaf.
type Option func(*options) error

type options struct {
	clock  Clock
	rng    *rand.Rand
	logger *slog.Logger
}

func newOptions(opts []Option) (*options, error) {
	o := new(options)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(clock Clock) Option {
	return func(o *options) error {
		if clock == nil {
			return errors.New("schedule: nil clock")
		}
		o.clock = clock
		return nil
	}
}

// WithSeed gives the schedule its own deterministic jitter source.
func WithSeed(seed uint64) Option {
	return func(o *options) error {
		o.rng = rand.New(rand.NewPCG(seed, seed))
		return nil
	}
}

// WithRand sets the random source used for jitter and pause draws.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) error {
		if rng == nil {
			return errors.New("schedule: nil random source")
		}
		o.rng = rng
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
