package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Settings is the resolved, typed gatectl configuration.
type Settings struct {
	TickInterval time.Duration
	MaxTicks     int
	// Seed is nil when no seed is configured.
	Seed          *uint64
	LogLevel      slog.Level
	MetricsAddr   string
	ScheduleFile  string
	ScheduleWatch bool
	ScheduleMode  string
	StateFile     string

	AlternatingCounts []int

	EveryXMin, EveryXMax int
	EveryXDuration       int

	// EveryXPauseMin and EveryXPauseMax replace the counter task with a
	// random wall-clock pause when EveryXPauseMax is positive.
	EveryXPauseMin, EveryXPauseMax time.Duration

	EveryRangeMax      int
	EveryRangeStart    int
	EveryRangeEnd      int
	EveryRangeDuration int

	WeightedProbabilities []float64
	WeightedSuccess       float64
	WeightedCondition     string

	Probability     float64
	ProbabilitySkip string
}

// Settings resolves every option of c through the schema (environment
// variable, then file, then default) and parses it. Unlike loading, a value
// that does not parse is an error.
func (s *ConfigSchema) Settings(c *Config) (*Settings, error) {
	r := resolver{schema: s, config: c}
	out := &Settings{
		TickInterval:  r.dur("", "tick-interval"),
		MaxTicks:      r.integer("", "max-ticks"),
		MetricsAddr:   r.str("", "metrics.addr"),
		ScheduleFile:  r.str("", "schedule.file"),
		ScheduleWatch: r.boolean("", "schedule.watch"),
		ScheduleMode:  strings.ToLower(r.str("", "schedule.mode")),
		StateFile:     r.str("", "state.file"),

		AlternatingCounts: r.integers("alternating", "counts"),

		EveryXMin:      r.integer("every-x", "min"),
		EveryXMax:      r.integer("every-x", "max"),
		EveryXDuration: r.integer("every-x", "duration"),
		EveryXPauseMin: r.dur("every-x", "pause-min"),
		EveryXPauseMax: r.dur("every-x", "pause-max"),

		EveryRangeMax:      r.integer("every-range", "max-range"),
		EveryRangeStart:    r.integer("every-range", "window-start"),
		EveryRangeEnd:      r.integer("every-range", "window-end"),
		EveryRangeDuration: r.integer("every-range", "duration"),

		WeightedProbabilities: r.numbers("weighted", "probabilities"),
		WeightedSuccess:       r.number("weighted", "success-probability"),
		WeightedCondition:     r.str("weighted", "condition"),

		Probability:     r.number("probabilistic", "probability"),
		ProbabilitySkip: strings.ToLower(r.str("probabilistic", "skip-result")),
	}
	if v := r.str("", "seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			r.fail("", "seed", v, err)
		} else {
			out.Seed = &seed
		}
	}
	if v := r.str("", "log.level"); v != "" {
		if err := out.LogLevel.UnmarshalText([]byte(v)); err != nil {
			r.fail("", "log.level", v, err)
		}
	}
	if out.TickInterval <= 0 && r.err == nil {
		r.err = fmt.Errorf("option %q must be positive, got %s", "tick-interval", out.TickInterval)
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// resolver records the first parse failure, so Settings can read every
// option in one pass.
type resolver struct {
	schema *ConfigSchema
	config *Config
	err    error
}

func (r *resolver) str(section, key string) string {
	return r.schema.Resolve(r.config, section, key)
}

func (r *resolver) fail(section, key, value string, err error) {
	if r.err != nil {
		return
	}
	name := key
	if section != "" {
		name = section + "." + key
	}
	r.err = fmt.Errorf("option %q: invalid value %q: %w", name, value, err)
}

func (r *resolver) integer(section, key string) int {
	v := r.str(section, key)
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return i
}

func (r *resolver) number(section, key string) float64 {
	v := r.str(section, key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return f
}

func (r *resolver) boolean(section, key string) bool {
	v := r.str(section, key)
	b, err := parseBool(v)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return b
}

func (r *resolver) dur(section, key string) time.Duration {
	v := r.str(section, key)
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return d
}

func (r *resolver) integers(section, key string) []int {
	v := r.str(section, key)
	l, err := parseIntList(v)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return l
}

func (r *resolver) numbers(section, key string) []float64 {
	v := r.str(section, key)
	l, err := parseFloatList(v)
	if err != nil {
		r.fail(section, key, v, err)
	}
	return l
}
