// Package observe provides observability primitives for the installation:
// OpenTelemetry metrics with a Prometheus scrape bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so the gallery's monitoring
// can scrape a standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/waterbook/waterbook"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SessionsStarted counts sessions that left attract mode.
	SessionsStarted metric.Int64Counter

	// SessionsCompleted counts sessions that reached reset. Use with
	// attribute.Bool("degraded", ...).
	SessionsCompleted metric.Int64Counter

	// Transitions counts state transitions. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	Transitions metric.Int64Counter

	// StateDuration tracks wall time spent in each state. Use with
	// attribute.String("state", ...).
	StateDuration metric.Float64Histogram

	// GenerationLatency tracks the generation phase duration.
	GenerationLatency metric.Float64Histogram

	// GenerationTimeouts counts generation phases that hit the deadline and
	// fell back to default output.
	GenerationTimeouts metric.Int64Counter

	// DegradedPaths counts fallback activations. Use with
	// attribute.String("reason", ...).
	DegradedPaths metric.Int64Counter

	// CaptureErrors counts microphone failures.
	CaptureErrors metric.Int64Counter

	// FramesDropped counts audio frames discarded under consumer lag.
	FramesDropped metric.Int64Counter
}

// phaseBuckets defines histogram bucket boundaries (in seconds) spanning the
// session phase timings, from sub-second ticks to the display timeout.
var phaseBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 20, 35, 60, 90, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionsStarted, err = m.Int64Counter("waterbook.sessions.started",
		metric.WithDescription("Sessions that left attract mode."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("waterbook.sessions.completed",
		metric.WithDescription("Sessions that reached reset, by degraded flag."),
	); err != nil {
		return nil, err
	}
	if met.Transitions, err = m.Int64Counter("waterbook.session.transitions",
		metric.WithDescription("State transitions by source and target state."),
	); err != nil {
		return nil, err
	}
	if met.StateDuration, err = m.Float64Histogram("waterbook.session.state_duration",
		metric.WithDescription("Wall time spent in each session state."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(phaseBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationLatency, err = m.Float64Histogram("waterbook.generation.latency",
		metric.WithDescription("Duration of the generation phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(phaseBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationTimeouts, err = m.Int64Counter("waterbook.generation.timeouts",
		metric.WithDescription("Generation phases that hit the deadline."),
	); err != nil {
		return nil, err
	}
	if met.DegradedPaths, err = m.Int64Counter("waterbook.degraded",
		metric.WithDescription("Fallback activations by reason."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("waterbook.capture.errors",
		metric.WithDescription("Microphone open and read failures."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("waterbook.capture.frames_dropped",
		metric.WithDescription("Audio frames discarded under consumer lag."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTransition records one state transition together with the time spent
// in the state being left.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string, spent time.Duration) {
	m.Transitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
	m.StateDuration.Record(ctx, spent.Seconds(),
		metric.WithAttributes(attribute.String("state", from)),
	)
}

// RecordCompleted records one finished session.
func (m *Metrics) RecordCompleted(ctx context.Context, degraded bool) {
	m.SessionsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("degraded", degraded)),
	)
}

// RecordDegraded records one fallback activation.
func (m *Metrics) RecordDegraded(ctx context.Context, reason string) {
	m.DegradedPaths.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
