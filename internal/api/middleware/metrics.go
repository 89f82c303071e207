package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cropsense/cropsense/internal/api/middleware"

// Endpoint groups used to label request metrics.
const (
	GroupSensor     = "sensor"
	GroupPrediction = "prediction"
	GroupCrop       = "crop"
	GroupPage       = "page"
	GroupOps        = "ops"
	GroupUnmatched  = "unmatched"
)

// Metrics records request counts, latency and rejections for the CropSense
// endpoints.
type Metrics struct {
	duration  metric.Float64Histogram
	requests  metric.Int64Counter
	inFlight  metric.Int64UpDownCounter
	rejected  metric.Int64Counter
	bodyBytes metric.Int64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.duration, err = meter.Float64Histogram("cropsense.http.duration",
		metric.WithDescription("Time to serve a request"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter("cropsense.http.requests",
		metric.WithDescription("Requests served, by endpoint group and route"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("cropsense.http.in_flight",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.rejected, err = meter.Int64Counter("cropsense.http.rejected",
		metric.WithDescription("Requests refused before reaching the sensor state or classifier"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.bodyBytes, err = meter.Int64Histogram("cropsense.http.response_size",
		metric.WithDescription("Response body size"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware labels every request with its endpoint group and chi route
// pattern, so crop names in /get_crop_info/{crop} do not explode
// cardinality. Client errors are also counted by rejection reason.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			group := EndpointGroup(r.URL.Path)
			inFlight := metric.WithAttributes(attribute.String("cropsense.endpoint_group", group))
			m.inFlight.Add(ctx, 1, inFlight)
			defer m.inFlight.Add(ctx, -1, inFlight)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := routePattern(r)
			if route == "unmatched" {
				group = GroupUnmatched
			}
			attrs := metric.WithAttributes(
				attribute.String("cropsense.endpoint_group", group),
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.status_code", strconv.Itoa(rec.statusCode)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.bodyBytes.Record(ctx, rec.written, attrs)

			if reason := RejectionReason(rec.statusCode); reason != "" {
				m.rejected.Add(ctx, 1, metric.WithAttributes(
					attribute.String("cropsense.endpoint_group", group),
					attribute.String("cropsense.rejection", reason),
				))
			}
		})
	}
}

// EndpointGroup maps a request path onto the part of the service it
// exercises.
func EndpointGroup(path string) string {
	switch {
	case path == "/update_data", path == "/update_sensors", path == "/get_data":
		return GroupSensor
	case path == "/get_prediction":
		return GroupPrediction
	case strings.HasPrefix(path, "/get_crop_info/"):
		return GroupCrop
	case strings.HasPrefix(path, "/v1/ops/"):
		return GroupOps
	case path == "/", path == "/fertilizer", strings.HasPrefix(path, "/static/"):
		return GroupPage
	default:
		return GroupUnmatched
	}
}

// RejectionReason names why a request was refused, or "" for statuses that
// are not client rejections.
func RejectionReason(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusForbidden:
		return "tls_required"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return ""
	}
}
