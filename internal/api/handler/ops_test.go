package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/api/handler"
	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/provider/resilience"
)

type statusBody struct {
	Status     models.HealthStatus `json:"status"`
	Subsystems []struct {
		Name   string              `json:"name"`
		Status models.HealthStatus `json:"status"`
	} `json:"subsystems"`
	Providers []struct {
		Provider      string              `json:"provider"`
		Role          string              `json:"role"`
		Status        models.HealthStatus `json:"status"`
		CircuitState  string              `json:"circuitState"`
		LastOutcome   string              `json:"lastOutcome"`
		LastLatencyMs *int64              `json:"lastLatencyMs"`
		Fallbacks     uint64              `json:"fallbacks"`
	} `json:"providers"`
}

func serve(t *testing.T, h http.HandlerFunc, path string) (*httptest.ResponseRecorder, statusBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		cfg        handler.OpsConfig
		wantCode   int
		wantStatus models.HealthStatus
	}{
		{
			name:       "model and crops loaded",
			cfg:        handler.OpsConfig{ClassifierLoaded: true, KnowledgeBaseCrops: 9},
			wantCode:   http.StatusOK,
			wantStatus: models.HealthStatusOK,
		},
		{
			name:       "fallback rule in use",
			cfg:        handler.OpsConfig{ClassifierLoaded: false, KnowledgeBaseCrops: 9},
			wantCode:   http.StatusOK,
			wantStatus: models.HealthStatusDegraded,
		},
		{
			name:       "empty knowledge base",
			cfg:        handler.OpsConfig{ClassifierLoaded: true, KnowledgeBaseCrops: 0},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: models.HealthStatusFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(tt.cfg)
			rec, body := serve(t, h.ReadinessCheck, "/v1/ops/ready")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestSystemStatus_OpenCircuitDegrades(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	registry := resilience.NewRegistry()

	cbCfg := resilience.DefaultCircuitBreakerConfig("open-meteo")
	cbCfg.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 }
	cfg := resilience.DefaultClientConfig("open-meteo")
	cfg.MaxRetries = resilience.NoRetries
	cfg.CircuitBreaker = &cbCfg
	cfg.Registry = registry
	cfg.Role = resilience.RoleRainfall
	client := resilience.NewClient(cfg)

	healthy := resilience.DefaultClientConfig("nominatim")
	healthy.Registry = registry
	healthy.Role = resilience.RoleGeocoder
	_ = resilience.NewClient(healthy)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	h := handler.NewOpsHandler(handler.OpsConfig{
		Registry:           registry,
		ClassifierLoaded:   true,
		KnowledgeBaseCrops: 9,
	})
	rec, body := serve(t, h.SystemStatus, "/v1/ops/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.HealthStatusDegraded, body.Status)
	require.Len(t, body.Providers, 2)
	geocoder, rainfall := body.Providers[0], body.Providers[1]

	assert.Equal(t, "nominatim", geocoder.Provider)
	assert.Equal(t, "geocoder", geocoder.Role)
	assert.Equal(t, models.HealthStatusOK, geocoder.Status)
	assert.Equal(t, "none", geocoder.LastOutcome)
	assert.Nil(t, geocoder.LastLatencyMs)

	assert.Equal(t, "open-meteo", rainfall.Provider)
	assert.Equal(t, "rainfall", rainfall.Role)
	assert.Equal(t, models.HealthStatusFail, rainfall.Status)
	assert.Equal(t, "open", rainfall.CircuitState)
	assert.Equal(t, "server_error", rainfall.LastOutcome)
	assert.NotNil(t, rainfall.LastLatencyMs)
	assert.Equal(t, uint64(1), rainfall.Fallbacks)
}

func TestSystemStatus_NoRegistry(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{ClassifierLoaded: true, KnowledgeBaseCrops: 3})
	rec, body := serve(t, h.SystemStatus, "/v1/ops/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Empty(t, body.Providers)
	require.Len(t, body.Subsystems, 2)
	assert.Equal(t, "classifier", body.Subsystems[0].Name)
	assert.Equal(t, "knowledge-base", body.Subsystems[1].Name)
}
