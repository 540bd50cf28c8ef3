package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks entries served from a namespace by result ("hit", "stale", "offline")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of responses served from the cache store",
		},
		[]string{"namespace", "result"},
	)

	// CacheMisses tracks lookups that found no entry
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"namespace"},
	)

	// CacheWrites tracks entries written to a namespace
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_writes_total",
			Help: "Total number of entries written to the cache store",
		},
		[]string{"namespace"},
	)

	// CacheEvictions tracks entries deleted by capacity trimming
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_evictions_total",
			Help: "Total number of entries evicted by capacity bounds",
		},
		[]string{"namespace"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "keys", "open", "names", "delete_namespace"
	)
)
