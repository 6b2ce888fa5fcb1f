// Package cache stores record store responses in Redis so that repeated list
// reads can be revalidated with conditional requests.
//
// The cache never answers a read on its own. Every GET still reaches the
// record store; a stored entry only contributes its validators
// (If-None-Match / If-Modified-Since) and, on 304 Not Modified, its body.
// A resync therefore always observes the store's current data.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.Key{
//		Endpoint:    "/getallorders",
//		QueryParams: url.Values{"page": {"2"}, "limit": {"7"}},
//		Subject:     "admin-1",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//	if cache.CanRevalidate(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// Only 200 responses to GET requests that carry a validator and no
// "Cache-Control: no-store" are stored (see Cacheable).
//
// # Metrics
//
//   - admin_cache_hits_total - Entries found for a request
//   - admin_cache_misses_total - Requests without a usable entry
//   - admin_cache_stored_bytes_total - Bytes written to Redis
//   - admin_cache_conditional_requests_total - Requests sent with validators
//   - admin_cache_not_modified_total - 304 responses served from an entry
//   - admin_cache_errors_total{operation} - Redis failures
package cache
