package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request coordination.
var (
	InflightOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetchcache_inflight_operations",
		Help: "Number of pending operations currently registered",
	})

	CoalescedWaiters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchcache_coalesced_waiters_total",
		Help: "Total number of submissions attached to an already pending operation",
	})

	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchcache_attempts_total",
		Help: "Total number of transport attempts by outcome",
	}, []string{"outcome"}) // outcome: success, transient, terminal, offline

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchcache_retries_total",
		Help: "Total number of retries after a transient failure",
	})

	RetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetchcache_retry_backoff_seconds",
		Help:    "Backoff waited before a retry",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	RetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchcache_retry_exhausted_total",
		Help: "Total number of operations that used up their retry budget",
	})
)
