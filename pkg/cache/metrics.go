package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks entries found for a request
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_cache_hits_total",
			Help: "Total number of cache entries found",
		},
	)

	// CacheMisses tracks requests without a usable entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to Redis
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_cache_stored_bytes_total",
			Help: "Total bytes of entries written to the cache",
		},
	)

	// ConditionalRequestsSent tracks requests sent with validators
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_cache_conditional_requests_total",
			Help: "Total number of requests sent with If-None-Match or If-Modified-Since",
		},
	)

	// NotModifiedResponses tracks 304 responses served from an entry
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "touch"
	)
)
