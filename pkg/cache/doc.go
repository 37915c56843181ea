// Package cache provides a capacity-bounded in-memory response store with
// pluggable cleanup policies and an optional periodic sweep.
//
// The store keeps access-frequency and recency bookkeeping for every entry and
// evicts under the configured Policy when a new key arrives at a full store:
//
//   - ClearAll                   - remove every entry
//   - EvictOlderThan(d)          - remove entries not read within d
//   - EvictBelowAccessCount(n)   - remove entries read fewer than n times
//   - EvictLeastFrequentlyUsed   - remove the single least read entry
//   - EvictLeastRecentlyUsed     - remove the single least recently read entry
//
// # Basic Usage
//
//	store, err := cache.New(cache.Config{
//		MaxEntries:    50,
//		Policy:        cache.EvictLeastRecentlyUsed(),
//		CleanupPeriod: time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	key := cache.Key{Method: http.MethodGet, URL: "https://api.example.com/items?page=1"}
//	store.Put(key.String(), body)
//
//	if payload, ok := store.Get(key.String()); ok {
//		// cache hit
//	}
//
// # Automatic Sweep
//
// When CleanupPeriod is non-zero a background goroutine runs Cleanup on every
// tick. Cleanup is the same capacity-gated routine Put uses: a store that is
// not full is left untouched no matter how much time has passed.
//
// # Metrics
//
//   - fetchcache_cache_hits_total - Cache hits
//   - fetchcache_cache_misses_total - Cache misses
//   - fetchcache_cache_evictions_total{policy} - Entries removed by cleanup
//   - fetchcache_cache_entries - Entries currently held
//
// All operations on one Store are serialized by a single mutex.
package cache
