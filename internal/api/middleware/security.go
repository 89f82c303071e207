package middleware

import (
	"net/http"

	"github.com/cropsense/cropsense/internal/api/models"
)

// Content-Security-Policy values for JSON endpoints and HTML pages.
const (
	apiCSP  = "default-src 'none'; frame-ancestors 'none'"
	pageCSP = "default-src 'self'; img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none'"
)

// SecurityHeaders adds standard security headers to all HTTP responses.
// Headers set:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - Permissions-Policy: geolocation=(), camera=(), microphone=()
func SecurityHeaders(next http.Handler) http.Handler {
	return securityHeaders(apiCSP, "geolocation=(), camera=(), microphone=()", next)
}

// PageSecurityHeaders is SecurityHeaders for the HTML pages. Same-origin
// scripts and styles are allowed, and the dashboard may ask the browser for
// its position so predictions can be enriched.
func PageSecurityHeaders(next http.Handler) http.Handler {
	return securityHeaders(pageCSP, "geolocation=(self), camera=(), microphone=()", next)
}

func securityHeaders(csp, permissions string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", csp)
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", permissions)

		next.ServeHTTP(w, r)
	})
}

// RequireTLS returns a middleware that rejects plain HTTP requests when
// enabled. It trusts X-Forwarded-Proto as set by the load balancer; requests
// without the header pass through.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				models.NewProblem(models.KindTLSRequired, GetRequestID(r.Context()), "This endpoint requires HTTPS").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
