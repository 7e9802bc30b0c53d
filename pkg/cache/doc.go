// Package cache provides a Redis-backed cache for remote service responses.
//
// Vehicle and dealer records never change within a dataset, so a successful
// GET body can be replayed for the same path until the entry's expiry. The
// dataset ID is part of every record path, so entries of different datasets
// never collide.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CacheKey{Endpoint: "/ds-1/vehicles/42"}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the remote service, then:
//		entry, _ = cache.ResponseToEntry(resp, manager.TTL())
//		_ = manager.Set(ctx, key, entry)
//	}
//	resp = cache.EntryToResponse(entry)
//
// # Cacheability
//
// Only 200 responses to GET requests are cached. The dataset resolution
// endpoint issues a fresh dataset on every call and is never cached; see
// Cacheable.
//
// # Metrics
//
//   - dealer_answer_cache_hits_total - Cache hits
//   - dealer_answer_cache_misses_total - Cache misses
//   - dealer_answer_cache_errors_total{operation} - Redis failures
package cache
