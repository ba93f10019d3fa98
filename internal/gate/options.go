package gate

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/joeycumines/go-gates/internal/tree"
)

// Option configures gates and the composites built from them.
type Option func(*options) error

type options struct {
	skip     tree.Status
	observer Observer
	logger   *slog.Logger
	rng      *rand.Rand
}

func newOptions(opts []Option) (*options, error) {
	o := &options{skip: tree.Failure}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o, nil
}

// WithSkipResult sets the status reported when the gate blocks. Only Success
// and Failure are accepted.
func WithSkipResult(status tree.Status) Option {
	return func(o *options) error {
		if !status.Terminal() {
			return fmt.Errorf("%w: skip result must be success or failure, got %s", ErrConfig, status)
		}
		o.skip = status
		return nil
	}
}

// WithObserver registers an observer notified after every tick of the gate
// (and of every gate inside a composite).
func WithObserver(observer Observer) Option {
	return func(o *options) error {
		o.observer = observer
		return nil
	}
}

// WithLogger sets the logger used for runtime warnings. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithSeed gives the node its own deterministic random source.
func WithSeed(seed uint64) Option {
	return func(o *options) error {
		o.rng = rand.New(rand.NewPCG(seed, seed))
		return nil
	}
}

// WithRand uses rng as the node's random source. The generator must not be
// shared with nodes ticked from other goroutines.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) error {
		if rng == nil {
			return fmt.Errorf("%w: nil random source", ErrConfig)
		}
		o.rng = rng
		return nil
	}
}

// fork derives an independent generator from o.rng, so composites can hand
// each child gate its own source while staying reproducible from one seed.
func (o *options) fork() *rand.Rand {
	return rand.New(rand.NewPCG(o.rng.Uint64(), o.rng.Uint64()))
}
