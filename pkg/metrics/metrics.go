// Package metrics exposes the Prometheus metrics of fetchcache.
// All metrics are defined in their respective packages (cache, coordinator,
// client, ratelimit) via promauto; this package documents them and serves
// the registry over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every fetchcache metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - fetchcache_cache_hits_total (Counter): Cache hits
//   - fetchcache_cache_misses_total (Counter): Cache misses
//   - fetchcache_cache_evictions_total{policy} (Counter): Evicted entries by policy
//     (all, older-than, below-count, lfu, lru, capacity)
//   - fetchcache_cache_entries (Gauge): Entries currently stored
//
// Coordinator Metrics (pkg/coordinator):
//   - fetchcache_inflight_operations (Gauge): Pending operations
//   - fetchcache_coalesced_waiters_total (Counter): Submissions attached to a pending operation
//   - fetchcache_attempts_total{outcome} (Counter): Attempts by outcome
//     (success, transient, terminal, offline)
//   - fetchcache_retries_total (Counter): Retries after transient failures
//   - fetchcache_retry_backoff_seconds (Histogram): Backoff waited before a retry
//   - fetchcache_retry_exhausted_total (Counter): Operations that used up their budget
//
// Request Metrics (pkg/client):
//   - fetchcache_requests_total{source} (Counter): Requests by source (cache, upstream, error)
//   - fetchcache_request_duration_seconds (Histogram): Request duration, cache hits included
//   - fetchcache_transport_requests_total{status} (Counter): Upstream HTTP requests by status
//   - fetchcache_transport_errors_total{class} (Counter): Transport failures by class
//
// Rate Limit Metrics (pkg/ratelimit):
//   - fetchcache_rate_limit_remaining (Gauge): Errors remaining in the upstream window
//   - fetchcache_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - fetchcache_rate_limit_throttles_total (Counter): Requests throttled at the warning threshold
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(fetchcache_cache_hits_total[5m])) /
//   (sum(rate(fetchcache_cache_hits_total[5m])) + sum(rate(fetchcache_cache_misses_total[5m])))
//
//   # Deduplication ratio
//   rate(fetchcache_coalesced_waiters_total[5m]) / rate(fetchcache_requests_total[5m])
//
//   # Retry pressure
//   rate(fetchcache_retries_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fetchcache_request_duration_seconds_bucket[5m]))
