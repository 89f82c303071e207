// Package ingest applies sensor payloads to the shared state. The HTTP
// handlers and the optional Kafka and Pub/Sub consumers all go through the
// same Updater so every transport is validated identically.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/prediction"
	"github.com/cropsense/cropsense/internal/sensor"
	"github.com/cropsense/cropsense/internal/telemetry"
)

// Transport names used in logs and metrics.
const (
	TransportHTTP   = "http"
	TransportKafka  = "kafka"
	TransportPubSub = "pubsub"
)

// Predictor reclassifies the stored readings after an update.
type Predictor interface {
	Reclassify(ctx context.Context) prediction.Result
}

// UpdaterConfig holds configuration for the Updater.
type UpdaterConfig struct {
	// Policy validates payloads (default: sensor.DefaultPolicy).
	Policy *sensor.Policy

	// Store receives validated readings (required).
	Store *sensor.Store

	// Predictor refreshes the stored prediction after each accepted update
	// (optional, the prediction is left untouched when nil).
	Predictor Predictor

	// Metrics counts updates (optional).
	Metrics *telemetry.PredictionMetrics

	// Logger for update operations.
	Logger zerolog.Logger
}

// Updater validates sensor payloads and merges them into the store.
type Updater struct {
	policy    sensor.Policy
	store     *sensor.Store
	predictor Predictor
	metrics   *telemetry.PredictionMetrics
	logger    zerolog.Logger
}

// NewUpdater creates a new Updater.
func NewUpdater(cfg UpdaterConfig) *Updater {
	policy := sensor.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	return &Updater{
		policy:    policy,
		store:     cfg.Store,
		predictor: cfg.Predictor,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// UpdateJSON decodes a single JSON object and applies it. Malformed bodies
// and trailing data are reported as *sensor.ValidationError.
func (u *Updater) UpdateJSON(ctx context.Context, transport string, body []byte) (sensor.State, error) {
	var raw map[string]any
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			err = &sensor.ValidationError{Reason: "invalid JSON: " + err.Error()}
			u.record(ctx, transport, err)
			return sensor.State{}, err
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			err := &sensor.ValidationError{Reason: "invalid JSON: unexpected data after object"}
			u.record(ctx, transport, err)
			return sensor.State{}, err
		}
	}
	return u.Update(ctx, transport, raw)
}

// Update validates raw and merges it into the store.
func (u *Updater) Update(ctx context.Context, transport string, raw map[string]any) (sensor.State, error) {
	patch, err := u.policy.Parse(raw)
	if err != nil {
		u.record(ctx, transport, err)
		return sensor.State{}, err
	}

	state := u.store.Apply(patch)
	u.record(ctx, transport, nil)
	if u.predictor != nil {
		state = u.predictor.Reclassify(ctx).State
	}

	u.logger.Debug().
		Str("transport", transport).
		Float64("temperature", state.Temperature).
		Float64("humidity", state.Humidity).
		Float64("ph", state.PH).
		Float64("rainfall", state.Rainfall).
		Float64("soil_moisture", state.SoilMoisture).
		Str("prediction", state.Prediction).
		Msg("sensor data updated")

	return state, nil
}

func (u *Updater) record(ctx context.Context, transport string, err error) {
	u.metrics.RecordSensorUpdate(ctx, transport, err)
	if err == nil {
		return
	}
	u.logger.Warn().
		Err(err).
		Str("transport", transport).
		Msg("rejected sensor payload")
}

// IsInvalidPayload reports whether err is a client-side payload error.
func IsInvalidPayload(err error) bool {
	var verr *sensor.ValidationError
	var rerr *sensor.OutOfRangeError
	return errors.As(err, &verr) || errors.As(err, &rerr)
}
