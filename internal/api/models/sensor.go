package models

import (
	"github.com/cropsense/cropsense/internal/crop"
	"github.com/cropsense/cropsense/internal/sensor"
)

// Update statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// UpdateResponse is the reply to a sensor update. Sensor firmware keys off
// the status field, so errors use this shape rather than a Problem.
type UpdateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// PredictionRequest carries optional device coordinates. Absent or zero
// coordinates skip the location refresh.
type PredictionRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
}

// Coordinates returns the requested position, zero when absent.
func (p PredictionRequest) Coordinates() (lat, lon float64) {
	if p.Lat != nil {
		lat = *p.Lat
	}
	if p.Lon != nil {
		lon = *p.Lon
	}
	return lat, lon
}

// SensorsView is the enriched state returned with a prediction.
type SensorsView struct {
	sensor.State
	AnnualRain float64 `json:"annual_rain"`
}

// PredictionResponse is the reply to POST /get_prediction.
type PredictionResponse struct {
	Sensors    SensorsView `json:"sensors"`
	Prediction string      `json:"prediction"`
	Alert      *crop.Alert `json:"alert"`
}
