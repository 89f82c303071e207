package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/cropsense/cropsense/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Rate limits per client IP.
var (
	// UpdateRateLimit applies to sensor update endpoints (100 req/min).
	UpdateRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}

	// PredictionRateLimit applies to prediction, which may call out to
	// the geocoding and weather providers (30 req/min).
	PredictionRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware keyed by client IP.
// Uses X-Forwarded-For / X-Real-IP when present.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Round(time.Second) / time.Second))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rateLimitExceeded(w, r, retryAfter)
		}),
	)
}

// rateLimitExceeded writes an RFC7807 Problem response. httprate does not
// expose the reset time, so Retry-After is the full window.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	models.NewProblem(models.KindTooManyRequests, GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
		WithInstance(r.URL.Path).
		Write(w)
}
