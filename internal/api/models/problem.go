package models

import (
	"encoding/json"
	"net/http"
)

// problemBase prefixes every CropSense problem type URI.
const problemBase = "https://cropsense.dev/problems/"

// Problem represents an RFC7807 error response, written with Content-Type
// application/problem+json. Sensor update endpoints keep their own envelope
// (see UpdateResponse) and never produce a Problem.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Kind classifies an error response. Each kind fixes the type URI, title
// and HTTP status of the problems built from it.
type Kind int

const (
	KindValidation Kind = iota
	KindInvalidCoordinates
	KindNotFound
	KindMethodNotAllowed
	KindUnsupportedMedia
	KindPayloadTooLarge
	KindTLSRequired
	KindTooManyRequests
	KindInternal
)

type kindInfo struct {
	slug   string
	title  string
	status int
}

var kinds = [...]kindInfo{
	KindValidation:         {"validation-error", "Validation error", http.StatusBadRequest},
	KindInvalidCoordinates: {"invalid-coordinates", "Invalid coordinates", http.StatusBadRequest},
	KindNotFound:           {"not-found", "Not found", http.StatusNotFound},
	KindMethodNotAllowed:   {"method-not-allowed", "Method not allowed", http.StatusMethodNotAllowed},
	KindUnsupportedMedia:   {"unsupported-media-type", "Unsupported media type", http.StatusUnsupportedMediaType},
	KindPayloadTooLarge:    {"payload-too-large", "Payload too large", http.StatusRequestEntityTooLarge},
	KindTLSRequired:        {"tls-required", "TLS required", http.StatusForbidden},
	KindTooManyRequests:    {"too-many-requests", "Too many requests", http.StatusTooManyRequests},
	KindInternal:           {"internal-error", "Internal server error", http.StatusInternalServerError},
}

func (k Kind) info() kindInfo {
	if k < 0 || int(k) >= len(kinds) {
		return kinds[KindInternal]
	}
	return kinds[k]
}

// Type returns the problem type URI.
func (k Kind) Type() string { return problemBase + k.info().slug }

// Title returns the short summary shared by every problem of this kind.
func (k Kind) Title() string { return k.info().title }

// Status returns the HTTP status code.
func (k Kind) Status() int { return k.info().status }

// NewProblem creates a Problem of the given kind.
func NewProblem(kind Kind, traceID, detail string) *Problem {
	return &Problem{
		Type:    kind.Type(),
		Title:   kind.Title(),
		Status:  kind.Status(),
		Detail:  detail,
		TraceID: traceID,
	}
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-field errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
