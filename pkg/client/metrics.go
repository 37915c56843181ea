package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for client operations.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchcache_requests_total",
		Help: "Total client requests by source of the answer",
	}, []string{"source"}) // source: cache, upstream, error

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetchcache_request_duration_seconds",
		Help:    "Client request duration in seconds, cache hits included",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	})

	TransportRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchcache_transport_requests_total",
		Help: "Total HTTP requests sent upstream by status",
	}, []string{"status"})

	TransportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchcache_transport_errors_total",
		Help: "Total transport failures by class",
	}, []string{"class"})
)
