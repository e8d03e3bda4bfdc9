package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationsTotal tracks license verification verdicts by outcome
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyserve_verifications_total",
		Help: "Total number of license verification requests by outcome",
	}, []string{"outcome"})

	// RateLimitedTotal tracks requests rejected by the per-client limiter
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyserve_rate_limited_total",
		Help: "Total number of requests rejected by rate limiting",
	})

	// AdminActionsTotal tracks administrative mutations by action
	AdminActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyserve_admin_actions_total",
		Help: "Total number of administrative actions by type",
	}, []string{"action"})

	// AdminAuthFailures tracks rejected admin credentials
	AdminAuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyserve_admin_auth_failures_total",
		Help: "Total number of admin requests with a missing or bad token",
	})

	// StoreOpDuration tracks authorization store latency
	StoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyserve_store_op_duration_seconds",
		Help:    "Histogram of authorization store operation duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// CacheOperations tracks record cache hits and misses
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyserve_cache_operations_total",
		Help: "Total number of record cache hits and misses",
	}, []string{"result"})
)
