// Package observe provides application-wide observability primitives for
// HearCoach: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped from the admin server's /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all HearCoach metrics.
const meterName = "github.com/MrWong99/hearcoach"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per turn stage ---

	// GenerationDuration tracks how long it took to obtain a sentence.
	GenerationDuration metric.Float64Histogram

	// RecognitionDuration tracks speech recognition latency.
	RecognitionDuration metric.Float64Histogram

	// PronunciationDuration tracks pronunciation rating latency.
	PronunciationDuration metric.Float64Histogram

	// SynthesisDuration tracks synthesise-and-play time of a sentence.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Attempts counts scored responses. Attributes: mode, correct.
	Attempts metric.Int64Counter

	// GenerationFallbacks counts sentences served offline after the remote
	// generators failed.
	GenerationFallbacks metric.Int64Counter

	// Reveals counts turns that ended with the sentence revealed.
	Reveals metric.Int64Counter

	// GoalNotifications counts daily-goal notifications.
	GoalNotifications metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, from, to.
	BreakerTransitions metric.Int64Counter

	// --- Distributions ---

	// ItemScore records the 0–100 score of every attempt. Attribute: mode.
	ItemScore metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of running practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin HTTP request processing time.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips and sentence playback.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// scoreBuckets covers the 0–100 item score range.
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	latency := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	if met.GenerationDuration, err = latency("hearcoach.generation.duration",
		"Time to obtain a practice sentence."); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = latency("hearcoach.recognition.duration",
		"Latency of speech recognition."); err != nil {
		return nil, err
	}
	if met.PronunciationDuration, err = latency("hearcoach.pronunciation.duration",
		"Latency of pronunciation rating."); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = latency("hearcoach.synthesis.duration",
		"Time to synthesise and play a sentence."); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "hearcoach.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "hearcoach.provider.errors", "Total provider errors by provider and kind."},
		{&met.Attempts, "hearcoach.attempts", "Scored responses by mode and correctness."},
		{&met.GenerationFallbacks, "hearcoach.generation.fallbacks", "Sentences served offline after remote generation failed."},
		{&met.Reveals, "hearcoach.reveals", "Turns that ended with the sentence revealed."},
		{&met.GoalNotifications, "hearcoach.goal.notifications", "Daily goal notifications."},
		{&met.BreakerTransitions, "hearcoach.circuit_breaker.transitions", "Circuit breaker state changes by provider."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ItemScore, err = m.Float64Histogram("hearcoach.attempt.item_score",
		metric.WithDescription("Item score of scored responses."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("hearcoach.active_sessions",
		metric.WithDescription("Number of running practice sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("hearcoach.http.request.duration",
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider call. status is "ok" or
// "error"; errors also increment [Metrics.ProviderErrors].
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordAttempt records a scored response and its item score.
func (m *Metrics) RecordAttempt(ctx context.Context, mode string, correct bool, itemScore float64) {
	m.Attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("correct", strconv.FormatBool(correct)),
	))
	m.ItemScore.Record(ctx, itemScore, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordGenerationFallback records a sentence served offline after remote
// generation failed.
func (m *Metrics) RecordGenerationFallback(ctx context.Context) {
	m.GenerationFallbacks.Add(ctx, 1)
}

// RecordReveal records a turn that ended with the sentence revealed.
func (m *Metrics) RecordReveal(ctx context.Context) {
	m.Reveals.Add(ctx, 1)
}

// RecordGoalReached records a daily-goal notification.
func (m *Metrics) RecordGoalReached(ctx context.Context) {
	m.GoalNotifications.Add(ctx, 1)
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, from, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
