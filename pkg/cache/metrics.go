package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks successful Get calls
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchcache_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks Get calls for absent keys
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchcache_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheEvictions tracks entries removed by cleanup, by policy
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchcache_cache_evictions_total",
			Help: "Total number of entries removed by cache cleanup",
		},
		[]string{"policy"}, // "all", "lru", "lfu", "below-count", "older-than", "capacity"
	)

	// CacheEntries tracks the number of entries held
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetchcache_cache_entries",
			Help: "Current number of entries in the response cache",
		},
	)
)
