// Package sensor validates incoming sensor payloads and holds the latest
// readings shared by every request.
package sensor

import (
	"fmt"
)

// Field names accepted in sensor payloads.
const (
	FieldTemperature  = "temperature"
	FieldHumidity     = "humidity"
	FieldPH           = "ph"
	FieldRainfall     = "rainfall"
	FieldSoilMoisture = "soil_moisture"
)

// fieldOrder fixes the order fields are validated and reported in.
var fieldOrder = []string{FieldTemperature, FieldHumidity, FieldPH, FieldRainfall, FieldSoilMoisture}

// fieldAliases maps alternative payload keys to their canonical field.
var fieldAliases = map[string]string{
	"temp": FieldTemperature,
}

// Reading is a complete set of environmental readings.
type Reading struct {
	Temperature  float64 `json:"temperature"`   // °C
	Humidity     float64 `json:"humidity"`      // %
	PH           float64 `json:"ph"`            // 0-14
	SoilMoisture float64 `json:"soil_moisture"` // %
	Rainfall     float64 `json:"rainfall"`      // mm, seasonal
}

// DefaultReading returns the readings a freshly started process reports.
func DefaultReading() Reading {
	return Reading{PH: 6.5}
}

// Patch is a partial reading. Nil fields are left unchanged when applied.
type Patch struct {
	Temperature  *float64
	Humidity     *float64
	PH           *float64
	SoilMoisture *float64
	Rainfall     *float64
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p.Temperature == nil && p.Humidity == nil && p.PH == nil &&
		p.SoilMoisture == nil && p.Rainfall == nil
}

// ApplyTo returns r with every non-nil field of p merged in.
func (p Patch) ApplyTo(r Reading) Reading {
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if p.Humidity != nil {
		r.Humidity = *p.Humidity
	}
	if p.PH != nil {
		r.PH = *p.PH
	}
	if p.SoilMoisture != nil {
		r.SoilMoisture = *p.SoilMoisture
	}
	if p.Rainfall != nil {
		r.Rainfall = *p.Rainfall
	}
	return r
}

func (p *Patch) set(field string, v float64) {
	switch field {
	case FieldTemperature:
		p.Temperature = &v
	case FieldHumidity:
		p.Humidity = &v
	case FieldPH:
		p.PH = &v
	case FieldSoilMoisture:
		p.SoilMoisture = &v
	case FieldRainfall:
		p.Rainfall = &v
	}
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// OutOfRangeError reports a physically implausible reading.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("invalid %s reading %g: must be between %g and %g", e.Field, e.Value, e.Min, e.Max)
}
