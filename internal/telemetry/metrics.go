package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cropsense/cropsense/internal/telemetry"

// ProviderMetrics holds metrics for external provider calls and the
// location cache. A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring external provider calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so a cancelled request still gets recorded
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit.
func (m *ProviderMetrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHit.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordCacheMiss records a cache miss.
func (m *ProviderMetrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMiss.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// PredictionMetrics counts crop predictions. A nil *PredictionMetrics
// records nothing.
type PredictionMetrics struct {
	predictions metric.Int64Counter
	ingested    metric.Int64Counter
}

// NewPredictionMetrics creates the prediction and ingestion counters.
func NewPredictionMetrics() (*PredictionMetrics, error) {
	meter := otel.Meter(meterName)

	predictions, err := meter.Int64Counter(
		"crop.prediction.total",
		metric.WithDescription("Total number of crop predictions by label and source"),
		metric.WithUnit("{prediction}"),
	)
	if err != nil {
		return nil, err
	}

	ingested, err := meter.Int64Counter(
		"sensor.update.total",
		metric.WithDescription("Total number of sensor updates by transport and result"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	return &PredictionMetrics{predictions: predictions, ingested: ingested}, nil
}

// RecordPrediction counts one prediction. Source is "model", "fallback" or "error".
func (m *PredictionMetrics) RecordPrediction(ctx context.Context, label, source string) {
	if m == nil {
		return
	}
	m.predictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("crop.label", label),
		attribute.String("prediction.source", source),
	))
}

// RecordSensorUpdate counts one sensor update attempt.
func (m *PredictionMetrics) RecordSensorUpdate(ctx context.Context, transport string, err error) {
	if m == nil {
		return
	}
	m.ingested.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sensor.transport", transport),
		attribute.Bool("error", err != nil),
	))
}
