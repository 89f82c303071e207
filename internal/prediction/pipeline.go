// Package prediction turns the current sensor state into a crop
// recommendation and irrigation alert.
package prediction

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cropsense/cropsense/internal/classifier"
	"github.com/cropsense/cropsense/internal/crop"
	"github.com/cropsense/cropsense/internal/location"
	"github.com/cropsense/cropsense/internal/sensor"
	"github.com/cropsense/cropsense/internal/telemetry"
)

const (
	// RainfallFeatureCap bounds the rainfall feature to the training range.
	RainfallFeatureCap = 250.0

	// FallbackRainThreshold splits the fallback rule.
	FallbackRainThreshold = 100.0

	// SeasonDays is the length of the rainfall window annualized in responses.
	SeasonDays = 120.0
)

// Prediction sources reported in metrics and results.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
	SourceError    = "error"
)

// Enricher refreshes the location context for a position.
type Enricher interface {
	Refresh(ctx context.Context, lat, lon float64) (location.Context, location.Outcome)
}

// Result is the outcome of one prediction.
type Result struct {
	State      sensor.State
	Label      string
	Alert      *crop.Alert
	AnnualRain float64
	Source     string
}

// PipelineConfig holds configuration for the prediction pipeline.
type PipelineConfig struct {
	// Classifier predicts the crop (optional, nil uses the fallback rule).
	Classifier classifier.Classifier

	// Enricher refreshes the location context (optional).
	Enricher Enricher

	// Store holds the process state (required).
	Store *sensor.Store

	// Metrics counts predictions (optional).
	Metrics *telemetry.PredictionMetrics

	// Logger for pipeline operations.
	Logger zerolog.Logger
}

// Pipeline runs enrichment, classification and alert derivation against the
// shared sensor state.
type Pipeline struct {
	classifier classifier.Classifier
	enricher   Enricher
	store      *sensor.Store
	metrics    *telemetry.PredictionMetrics
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewPipeline creates a new prediction pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	store := cfg.Store
	if store == nil {
		store = sensor.NewStore()
	}

	return &Pipeline{
		classifier: cfg.Classifier,
		enricher:   cfg.Enricher,
		store:      store,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		tracer:     telemetry.Tracer("github.com/cropsense/cropsense/internal/prediction"),
	}
}

// HasClassifier reports whether a trained model is loaded.
func (p *Pipeline) HasClassifier() bool {
	return p.classifier != nil
}

// Predict refreshes the location for (lat, lon), classifies the current
// readings and records the result in the store.
func (p *Pipeline) Predict(ctx context.Context, lat, lon float64) Result {
	ctx, span := p.tracer.Start(ctx, "prediction.Predict")
	defer span.End()

	if p.enricher != nil {
		loc, outcome := p.enricher.Refresh(ctx, lat, lon)
		var rainfall *float64
		if outcome.RainfallOK {
			r := loc.SeasonalRain
			rainfall = &r
		}
		p.store.ApplyEnrichment(loc, rainfall)
		span.SetAttributes(
			attribute.Bool("location.refreshed", outcome.Refreshed),
			attribute.Bool("location.geocode_ok", outcome.GeocodeOK),
			attribute.Bool("location.rainfall_ok", outcome.RainfallOK),
		)
	}

	return p.record(ctx, span)
}

// Reclassify classifies the current readings without touching the location
// context. Sensor updates use it so the stored prediction follows the latest
// readings.
func (p *Pipeline) Reclassify(ctx context.Context) Result {
	ctx, span := p.tracer.Start(ctx, "prediction.Reclassify")
	defer span.End()

	return p.record(ctx, span)
}

// record classifies the snapshot, derives the alert and stores both.
func (p *Pipeline) record(ctx context.Context, span trace.Span) Result {
	snapshot := p.store.Snapshot()
	label, source := p.classify(snapshot.Reading)

	var alert *crop.Alert
	if a, ok := crop.DeriveAlert(label, snapshot.SoilMoisture); ok {
		alert = &a
	}

	state := p.store.RecordPrediction(label, alert)
	p.metrics.RecordPrediction(ctx, label, source)
	span.SetAttributes(
		attribute.String("crop.label", label),
		attribute.String("prediction.source", source),
	)

	return Result{
		State:      state,
		Label:      label,
		Alert:      alert,
		AnnualRain: AnnualRain(state.Rainfall),
		Source:     source,
	}
}

func (p *Pipeline) classify(r sensor.Reading) (string, string) {
	if p.classifier == nil {
		return Fallback(r.Rainfall), SourceFallback
	}

	label, err := p.classifier.Predict(Features(r))
	if err != nil {
		p.logger.Error().
			Err(err).
			Float64("temperature", r.Temperature).
			Float64("humidity", r.Humidity).
			Float64("ph", r.PH).
			Float64("rainfall", r.Rainfall).
			Msg("classifier prediction failed")
		return crop.LabelError, SourceError
	}
	return Capitalize(label), SourceModel
}

// Features builds the classifier input in training order, capping rainfall.
func Features(r sensor.Reading) []float64 {
	return []float64{r.Temperature, r.Humidity, r.PH, math.Min(r.Rainfall, RainfallFeatureCap)}
}

// Fallback is the rule used when no trained model is available.
func Fallback(rainfall float64) string {
	if rainfall < FallbackRainThreshold {
		return "Maize"
	}
	return "Coffee"
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// AnnualRain extrapolates the seasonal rainfall to a year, rounded to 0.1 mm.
func AnnualRain(seasonal float64) float64 {
	return math.Round(seasonal*365/SeasonDays*10) / 10
}
