package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/api/models"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		kind   models.Kind
		uri    string
		title  string
		status int
	}{
		{models.KindValidation, "https://cropsense.dev/problems/validation-error", "Validation error", http.StatusBadRequest},
		{models.KindInvalidCoordinates, "https://cropsense.dev/problems/invalid-coordinates", "Invalid coordinates", http.StatusBadRequest},
		{models.KindNotFound, "https://cropsense.dev/problems/not-found", "Not found", http.StatusNotFound},
		{models.KindMethodNotAllowed, "https://cropsense.dev/problems/method-not-allowed", "Method not allowed", http.StatusMethodNotAllowed},
		{models.KindUnsupportedMedia, "https://cropsense.dev/problems/unsupported-media-type", "Unsupported media type", http.StatusUnsupportedMediaType},
		{models.KindPayloadTooLarge, "https://cropsense.dev/problems/payload-too-large", "Payload too large", http.StatusRequestEntityTooLarge},
		{models.KindTLSRequired, "https://cropsense.dev/problems/tls-required", "TLS required", http.StatusForbidden},
		{models.KindTooManyRequests, "https://cropsense.dev/problems/too-many-requests", "Too many requests", http.StatusTooManyRequests},
		{models.KindInternal, "https://cropsense.dev/problems/internal-error", "Internal server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.uri, tt.kind.Type())
			assert.Equal(t, tt.title, tt.kind.Title())
			assert.Equal(t, tt.status, tt.kind.Status())
		})
	}
}

func TestKind_UnknownFallsBackToInternal(t *testing.T) {
	assert.Equal(t, models.KindInternal.Type(), models.Kind(99).Type())
	assert.Equal(t, http.StatusInternalServerError, models.Kind(-1).Status())
}

func TestNewProblem(t *testing.T) {
	p := models.NewProblem(models.KindInvalidCoordinates, "req_test123", "lat must be between -90 and 90")

	assert.Equal(t, models.KindInvalidCoordinates.Type(), p.Type)
	assert.Equal(t, "Invalid coordinates", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewProblem(models.KindInvalidCoordinates, "req_test123", "invalid coordinates").
		WithInstance("/get_prediction").
		WithErrors([]models.FieldError{
			{Field: "lat", Message: "must be at most 90", Code: "OUT_OF_RANGE"},
		})

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, *p, result)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewProblem(models.KindInternal, "", "boom").Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestPredictionRequest_Coordinates(t *testing.T) {
	var req models.PredictionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"lat": 12.9716}`), &req))

	lat, lon := req.Coordinates()
	assert.Equal(t, 12.9716, lat)
	assert.Zero(t, lon)
}
