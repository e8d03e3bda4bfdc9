package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/soremlabs/keyserve/internal/infrastructure/metrics"
)

// AdminTokenHeader carries the shared admin secret.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuthMiddleware rejects requests whose X-Admin-Token does not match
// the configured secret. The comparison is constant time, and an empty
// configured secret locks the admin surface entirely rather than leaving
// it open.
func AdminAuthMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminTokenHeader)
			if adminToken == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				metrics.AdminAuthFailures.Inc()
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware rejects clients over the sliding-window budget with
// 429 before the request reaches the verification engine.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientAddr(r)) {
				metrics.RateLimitedTotal.Inc()
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr identifies the client for rate limiting: the first entry of
// X-Forwarded-For when a proxy set one, otherwise the peer address without
// its port.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
