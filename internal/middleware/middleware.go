// Package middleware provides HTTP middleware for the workflow API.
package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/internlink/workflow_layer/internal/httputil"
)

// RateLimit applies a token-bucket limiter in front of the API. Requests
// beyond the configured rate receive 429.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
