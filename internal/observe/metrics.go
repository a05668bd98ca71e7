// Package observe provides application-wide observability primitives for
// SacredDialogue: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all SacredDialogue metrics.
const meterName = "github.com/Blubaugh09/SacredDialogue"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ResolveDuration tracks end-to-end answer resolution latency. Use with
	// attributes:
	//   attribute.String("character", ...), attribute.String("provenance", ...)
	ResolveDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks narration synthesis latency.
	TTSDuration metric.Float64Histogram

	// STTDuration tracks voice transcription latency.
	STTDuration metric.Float64Histogram

	// Resolutions counts answered questions. Use with attributes:
	//   attribute.String("character", ...), attribute.String("provenance", ...)
	Resolutions metric.Int64Counter

	// SharesCreated counts share links handed out, by character.
	SharesCreated metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of open conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a pipeline that is either a cache hit or one remote model call.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ResolveDuration, err = m.Float64Histogram("sacreddialogue.resolve.duration",
		metric.WithDescription("End-to-end answer resolution latency by character and provenance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("sacreddialogue.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("sacreddialogue.tts.duration",
		metric.WithDescription("Latency of narration synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("sacreddialogue.stt.duration",
		metric.WithDescription("Latency of voice transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Resolutions, err = m.Int64Counter("sacreddialogue.resolutions",
		metric.WithDescription("Total answered questions by character and provenance."),
	); err != nil {
		return nil, err
	}
	if met.SharesCreated, err = m.Int64Counter("sacreddialogue.shares.created",
		metric.WithDescription("Total share links created by character."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sacreddialogue.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("sacreddialogue.active_sessions",
		metric.WithDescription("Number of open conversation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sacreddialogue.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordResolution records one answered question with the standard
// attribute set.
func (m *Metrics) RecordResolution(ctx context.Context, characterID, provenance string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("character", characterID),
		attribute.String("provenance", provenance),
	)
	m.Resolutions.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, seconds, attrs)
}

// RecordShareCreated records one created share link.
func (m *Metrics) RecordShareCreated(ctx context.Context, characterID string) {
	m.SharesCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("character", characterID)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
