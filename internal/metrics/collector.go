// Package metrics exports gate activity as Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/gate"
	"github.com/joeycumines/go-gates/internal/tree"
)

const namespace = "gates"

// Collector implements gate.Observer and gate.StoreErrorObserver.
type Collector struct {
	// DecisionsTotal counts gate ticks by gate and decision (allow, block).
	DecisionsTotal *prometheus.CounterVec

	// ResultsTotal counts the status each gate reported, by gate and status.
	ResultsTotal *prometheus.CounterVec

	// StoreErrorsTotal counts recoverable blackboard errors by key and
	// reason (missing, not_numeric, other).
	StoreErrorsTotal *prometheus.CounterVec

	// TicksTotal counts root ticks by resulting status.
	TicksTotal *prometheus.CounterVec

	// TickDurationSeconds measures how long each root tick took.
	TickDurationSeconds prometheus.Histogram
}

var (
	_ gate.Observer           = (*Collector)(nil)
	_ gate.StoreErrorObserver = (*Collector)(nil)
)

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Gate ticks by decision.",
		}, []string{"gate", "decision"}),
		ResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Gate tick results by status.",
		}, []string{"gate", "status"}),
		StoreErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Recoverable blackboard errors by key and reason.",
		}, []string{"key", "reason"}),
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Root ticks by resulting status.",
		}, []string{"status"}),
		TickDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of root ticks.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

func (c *Collector) Decision(gateName string, allowed bool, result tree.Status) {
	decision := "block"
	if allowed {
		decision = "allow"
	}
	c.DecisionsTotal.WithLabelValues(gateName, decision).Inc()
	c.ResultsTotal.WithLabelValues(gateName, result.String()).Inc()
}

func (c *Collector) StoreError(_, key string, err error) {
	c.StoreErrorsTotal.WithLabelValues(key, reason(err)).Inc()
}

// ObserveTick records one root tick.
func (c *Collector) ObserveTick(status tree.Status, d time.Duration) {
	c.TicksTotal.WithLabelValues(status.String()).Inc()
	c.TickDurationSeconds.Observe(d.Seconds())
}

func reason(err error) string {
	switch {
	case errors.Is(err, blackboard.ErrMissing):
		return "missing"
	case errors.Is(err, blackboard.ErrNotNumeric):
		return "not_numeric"
	default:
		return "other"
	}
}
