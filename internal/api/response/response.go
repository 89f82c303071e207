// Package response writes the API's JSON, problem and page responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/cropsense/cropsense/internal/api/middleware"
	"github.com/cropsense/cropsense/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// UpdateError writes the {"status":"error"} envelope sensor clients expect.
func UpdateError(w http.ResponseWriter, r *http.Request, status int, message, field string) {
	JSON(w, r, status, models.UpdateResponse{
		Status:  models.StatusError,
		Message: message,
		Field:   field,
	})
}

// Problem writes an RFC7807 response of the given kind for the request path.
func Problem(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string, fieldErrors ...models.FieldError) {
	models.NewProblem(kind, middleware.GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		WithErrors(fieldErrors).
		Write(w)
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Problem(w, r, models.KindNotFound, "no route for "+r.URL.Path)
}

// MethodNotAllowed answers requests that match a route but not its method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Problem(w, r, models.KindMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
}

// HTML writes a rendered page.
func HTML(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}
