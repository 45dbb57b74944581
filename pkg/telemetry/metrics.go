package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filament-dev/filament/pkg/filament"
)

// MetricsConfig configures the Prometheus instrumentation.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "filament").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for effect run duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus instrumentation.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the effect duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "filament",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the engine.
type metrics struct {
	linksTotal     *prometheus.CounterVec
	triggersTotal  *prometheus.CounterVec
	flushesTotal   prometheus.Counter
	flushJobs      prometheus.Histogram
	effectRuns     prometheus.Counter
	effectErrors   prometheus.Counter
	effectDuration prometheus.Histogram
	liveLinks      prometheus.GaugeFunc
}

func newMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		linksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "links_total",
			Help:        "Total number of dependency links created",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of trigger passes by operation kind",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of completed scheduler drains",
			ConstLabels: config.ConstLabels,
		}),

		flushJobs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_jobs",
			Help:        "Jobs executed per scheduler drain",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of subscriber invocations",
			ConstLabels: config.ConstLabels,
		}),

		effectErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_errors_total",
			Help:        "Total number of subscriber invocations that panicked",
			ConstLabels: config.ConstLabels,
		}),

		effectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_run_duration_seconds",
			Help:        "Subscriber invocation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		liveLinks: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_links",
			Help:        "Current number of dependency links in the graph",
			ConstLabels: config.ConstLabels,
		}, func() float64 {
			return float64(filament.LiveLinks())
		}),
	}
}

// EnableMetrics registers Prometheus collectors fed by the engine's
// hooks. The returned function removes the hooks; the collectors stay
// registered, frozen at their last values.
//
// Example:
//
//	stop := telemetry.EnableMetrics(
//	    telemetry.WithNamespace("myapp"),
//	)
//	defer stop()
//
//	http.Handle("/metrics", promhttp.Handler())
func EnableMetrics(opts ...MetricsOption) func() {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m := newMetrics(config)

	removeTrack := filament.HookOnTrack(func(ev filament.TrackEvent) {
		m.linksTotal.WithLabelValues(ev.Op.String()).Inc()
	})
	removeTrigger := filament.HookOnTrigger(func(ev filament.TriggerEvent) {
		m.triggersTotal.WithLabelValues(ev.Op.String()).Inc()
	})
	removeFlush := filament.HookOnFlush(func(ev filament.FlushEvent) {
		m.flushesTotal.Inc()
		m.flushJobs.Observe(float64(ev.Jobs))
	})
	removeRun := filament.HookOnEffectRun(func(ev filament.EffectRunEvent) {
		m.effectRuns.Inc()
		if ev.Err != nil {
			m.effectErrors.Inc()
		}
		m.effectDuration.Observe(ev.Duration.Seconds())
	})

	return func() {
		removeTrack()
		removeTrigger()
		removeFlush()
		removeRun()
	}
}
