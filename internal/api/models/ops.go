package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus reports one location-enrichment provider. Role is
// "geocoder" or "rainfall"; LastOutcome is "none" until the first lookup.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Role          string       `json:"role"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastOutcome   string       `json:"lastOutcome"`
	LastLatencyMs *int64       `json:"lastLatencyMs,omitempty"`
	Lookups       uint64       `json:"lookups"`
	Fallbacks     uint64       `json:"fallbacks"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
