package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups served from cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "findocgpt_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks lookups that invoked a loader.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "findocgpt_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks entries reclaimed by the sweeper or explicit
	// invalidation.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "findocgpt_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)

	// CacheEntries tracks the number of resident entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "findocgpt_cache_entries",
			Help: "Current number of resident cache entries",
		},
	)

	// CacheSizeBytes tracks the estimated memory footprint of the cache.
	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "findocgpt_cache_size_bytes",
			Help: "Estimated size of the cache in bytes",
		},
	)

	// LoaderDuration tracks loader execution time on cache misses.
	LoaderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "findocgpt_cache_loader_duration_seconds",
			Help:    "Loader execution duration on cache misses",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// SweepDuration tracks how long a full sweep takes.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "findocgpt_cache_sweep_duration_seconds",
			Help:    "Duration of eviction sweeps",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findocgpt_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "key", "load", "sweep", "snapshot"
	)
)
