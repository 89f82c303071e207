// Package handler provides HTTP handlers for the CropSense API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/provider/resilience"
)

// OpsConfig holds what the operational endpoints report on.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry tracks the outbound providers (optional).
	Registry *resilience.Registry

	// ClassifierLoaded is false when predictions use the fallback rule.
	ClassifierLoaded bool

	// KnowledgeBaseCrops is the number of crops in the knowledge base.
	KnowledgeBaseCrops int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The service cannot answer crop
// lookups without a knowledge base; a missing classifier only degrades it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.subsystems()
	status := worst(subsystemStatuses(subsystems)...)

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"classifierLoaded":   h.cfg.ClassifierLoaded,
			"knowledgeBaseCrops": h.cfg.KnowledgeBaseCrops,
		},
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider circuit status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.subsystems()
	providers := h.providers()

	statuses := subsystemStatuses(subsystems)
	for _, p := range providers {
		// Provider outages degrade enrichment but never block predictions.
		if p.Status != models.HealthStatusOK {
			statuses = append(statuses, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     worst(statuses...),
		Time:       models.Timestamp(h.now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	classifier := models.SubsystemStatus{Name: "classifier", Status: models.HealthStatusOK}
	if !h.cfg.ClassifierLoaded {
		detail := "model not loaded, using fallback rule"
		classifier.Status = models.HealthStatusDegraded
		classifier.Detail = &detail
	}

	kb := models.SubsystemStatus{Name: "knowledge-base", Status: models.HealthStatusOK}
	if h.cfg.KnowledgeBaseCrops == 0 {
		detail := "no crops loaded"
		kb.Status = models.HealthStatusFail
		kb.Detail = &detail
	} else {
		detail := fmt.Sprintf("%d crops", h.cfg.KnowledgeBaseCrops)
		kb.Detail = &detail
	}

	return []models.SubsystemStatus{classifier, kb}
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Registry.Snapshot()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, health := range all {
		ps := models.ProviderStatus{
			Provider:      health.Name,
			Role:          string(health.Role),
			Status:        models.HealthStatus(health.Status()),
			CircuitState:  health.CircuitState.String(),
			LastOutcome:   string(health.LastOutcome),
			Lookups:       health.Lookups,
			Fallbacks:     health.Failures,
			LastSuccessAt: models.TimestampPtr(health.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(health.LastFailureAt),
		}
		if health.Lookups > 0 {
			ms := health.LastLatency.Milliseconds()
			ps.LastLatencyMs = &ms
		}
		if health.LastError != "" {
			msg := health.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func subsystemStatuses(subsystems []models.SubsystemStatus) []models.HealthStatus {
	out := make([]models.HealthStatus, 0, len(subsystems))
	for _, s := range subsystems {
		out = append(out, s.Status)
	}
	return out
}

// worst returns the most severe status, OK when none are given.
func worst(statuses ...models.HealthStatus) models.HealthStatus {
	result := models.HealthStatusOK
	for _, s := range statuses {
		switch s {
		case models.HealthStatusFail:
			return models.HealthStatusFail
		case models.HealthStatusDegraded:
			result = models.HealthStatusDegraded
		}
	}
	return result
}
