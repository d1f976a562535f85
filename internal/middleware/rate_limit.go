package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration for the HTTP edge.
// This is a coarse per-IP guard in front of the router; the per-source
// sliding window inside the engine is the authoritative limit.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultEdgeRateLimit returns the default edge limit. It is deliberately
// looser than the engine's per-source window so the engine, not the edge,
// decides the X-RateLimit headers callers see.
func DefaultEdgeRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"too many requests"}`))
		}),
	)
}
