package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limit tracking.
var (
	RateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetchcache_rate_limit_remaining",
		Help: "Errors remaining in the current upstream rate limit window",
	})

	RateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchcache_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical error limit",
	})

	RateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchcache_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to warning error limit",
	})
)
