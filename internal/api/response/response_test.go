package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/api/middleware"
	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/api/response"
)

// withRequestID runs req through the RequestID middleware so responses can
// pick the ID up from the context.
func withRequestID(t *testing.T, method, path string) *http.Request {
	t.Helper()
	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	require.NotNil(t, processed)
	return processed
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := withRequestID(t, http.MethodGet, "/get_data")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]float64{"ph": 6.5})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, middleware.GetRequestID(req.Context()), rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"ph": 6.5}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/get_data", http.NoBody), http.StatusOK, nil)

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestUpdateError_UsesSensorEnvelope(t *testing.T) {
	req := withRequestID(t, http.MethodPost, "/update_data")
	rec := httptest.NewRecorder()

	response.UpdateError(rec, req, http.StatusBadRequest, "missing data field", "humidity")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"error","message":"missing data field","field":"humidity"}`, rec.Body.String())
}

func TestProblem_CarriesKindAndFieldErrors(t *testing.T) {
	req := withRequestID(t, http.MethodPost, "/get_prediction")
	rec := httptest.NewRecorder()

	response.Problem(rec, req, models.KindInvalidCoordinates, "invalid coordinates",
		models.FieldError{Field: "lat", Message: "must be at most 90", Code: "OUT_OF_RANGE"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, models.KindInvalidCoordinates.Type(), p.Type)
	assert.Equal(t, "/get_prediction", p.Instance)
	assert.Equal(t, middleware.GetRequestID(req.Context()), p.TraceID)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "lat", p.Errors[0].Field)
}

func TestProblem_OmitsEmptyErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Problem(rec, withRequestID(t, http.MethodGet, "/"), models.KindInternal, "could not render page")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"errors"`)
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	response.NotFound(rec, withRequestID(t, http.MethodGet, "/get_crop"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, models.KindNotFound.Type(), p.Type)
	assert.Equal(t, "no route for /get_crop", p.Detail)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	response.MethodNotAllowed(rec, withRequestID(t, http.MethodGet, "/update_data"))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET is not allowed on /update_data", decodeProblem(t, rec).Detail)
}

func TestHTML_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	response.HTML(rec, withRequestID(t, http.MethodGet, "/"), http.StatusOK, []byte("<h1>CropSense</h1>"))

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "<h1>CropSense</h1>", rec.Body.String())
}

func TestJSON_PreservesClientRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/get_data", http.NoBody)
	req.Header.Set("X-Request-Id", "sensor-node-7")

	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	response.JSON(rec, processed, http.StatusOK, nil)
	assert.Equal(t, "sensor-node-7", rec.Header().Get("X-Request-Id"))
}
