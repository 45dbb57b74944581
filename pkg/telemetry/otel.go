package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/filament-dev/filament/pkg/filament"
)

// Default tracer name for engine spans.
const defaultTracerName = "filament"

// TraceConfig configures the OpenTelemetry instrumentation.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "filament").
	TracerName string

	// TraceFlushes emits a span per scheduler drain. Enabled by default.
	TraceFlushes bool

	// TraceEffects emits a span per subscriber invocation. These are
	// high-volume; disabled by default.
	TraceEffects bool

	// Filter decides which effect runs to trace. Return true to trace.
	// If nil, all effect runs are traced.
	Filter func(ev filament.EffectRunEvent) bool

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the OpenTelemetry instrumentation.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTraceFlushes enables/disables per-flush spans.
func WithTraceFlushes(enable bool) TraceOption {
	return func(c *TraceConfig) {
		c.TraceFlushes = enable
	}
}

// WithTraceEffects enables/disables per-effect spans.
func WithTraceEffects(enable bool) TraceOption {
	return func(c *TraceConfig) {
		c.TraceEffects = enable
	}
}

// WithEffectFilter sets a filter for effect-run spans.
func WithEffectFilter(filter func(ev filament.EffectRunEvent) bool) TraceOption {
	return func(c *TraceConfig) {
		c.Filter = filter
	}
}

func defaultTraceConfig() TraceConfig {
	return TraceConfig{
		TracerName:   defaultTracerName,
		TraceFlushes: true,
	}
}

// EnableTracing registers hooks that emit OpenTelemetry spans for
// scheduler drains and, optionally, individual subscriber runs. The
// events carry their own start times and durations, so spans are created
// retroactively with explicit timestamps.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// before enabling:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	)
//	otel.SetTracerProvider(tp)
//
//	stop := telemetry.EnableTracing(telemetry.WithTraceEffects(true))
//	defer stop()
//
// The returned function removes the hooks.
func EnableTracing(opts ...TraceOption) func() {
	config := defaultTraceConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	var removeFlush, removeRun func()

	if config.TraceFlushes {
		removeFlush = filament.HookOnFlush(func(ev filament.FlushEvent) {
			_, span := config.tracer.Start(
				context.Background(),
				"filament.flush",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithTimestamp(ev.When.Add(-ev.Duration)),
				trace.WithAttributes(
					attribute.Int("filament.jobs", ev.Jobs),
				),
			)
			span.SetStatus(codes.Ok, "")
			span.End(trace.WithTimestamp(ev.When))
		})
	}

	if config.TraceEffects {
		removeRun = filament.HookOnEffectRun(func(ev filament.EffectRunEvent) {
			if config.Filter != nil && !config.Filter(ev) {
				return
			}
			_, span := config.tracer.Start(
				context.Background(),
				fmt.Sprintf("filament.effect %d", ev.SubscriberID),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithTimestamp(ev.When.Add(-ev.Duration)),
				trace.WithAttributes(
					attribute.Int64("filament.subscriber_id", int64(ev.SubscriberID)),
				),
			)
			if ev.Err != nil {
				span.RecordError(ev.Err)
				span.SetStatus(codes.Error, ev.Err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End(trace.WithTimestamp(ev.When))
		})
	}

	return func() {
		if removeFlush != nil {
			removeFlush()
		}
		if removeRun != nil {
			removeRun()
		}
	}
}
