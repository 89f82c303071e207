// Package crop holds static agronomic reference data: the multi-lingual crop
// knowledge base, per-crop water needs and the irrigation alert rules.
package crop

import "errors"

// Sentinel labels that are not real predictions.
const (
	LabelWaiting = "Waiting..."
	LabelError   = "Error"
)

// DefaultImage is the image reference returned for unknown crops.
const DefaultImage = "default.jpg"

// ErrEmptyKnowledgeBase is returned when a knowledge base file holds no crops.
var ErrEmptyKnowledgeBase = errors.New("crop knowledge base is empty")

// Details is the description of a crop in one language.
type Details struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Fertilizer  string `json:"fertilizer"`
	Pesticide   string `json:"pesticide"`
	Season      string `json:"season,omitempty"`
	Image       string `json:"image"`
}

// Info is the record for one crop keyed by language code (en, hi, ...).
type Info map[string]Details

// AlertLevel is the urgency of an irrigation alert.
type AlertLevel string

const (
	AlertNormal   AlertLevel = "normal"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is an irrigation recommendation for the predicted crop.
type Alert struct {
	Message string     `json:"msg"`
	Level   AlertLevel `json:"level"`
}
