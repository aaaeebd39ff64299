// Package metrics provides the centralized Prometheus metrics registry for
// the caching layer. Metrics are defined in their owning packages (cache,
// marketdata, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - findocgpt_cache_hits_total (Counter): Lookups served from cache
//   - findocgpt_cache_misses_total (Counter): Lookups that invoked a loader
//   - findocgpt_cache_evictions_total (Counter): Entries reclaimed by sweep or invalidation
//   - findocgpt_cache_entries (Gauge): Resident entry count
//   - findocgpt_cache_size_bytes (Gauge): Estimated cache memory footprint
//   - findocgpt_cache_loader_duration_seconds (Histogram): Loader latency on misses
//   - findocgpt_cache_sweep_duration_seconds (Histogram): Eviction sweep duration
//   - findocgpt_cache_errors_total{operation} (Counter): Errors by operation
//     (key, load, sweep, snapshot)
//
// Market Data Metrics (pkg/marketdata):
//   - findocgpt_marketdata_requests_total{endpoint, status} (Counter): Upstream requests
//   - findocgpt_marketdata_request_duration_seconds{endpoint} (Histogram): Request duration
//   - findocgpt_marketdata_retries_total{error_class} (Counter): Retry attempts
//   - findocgpt_marketdata_retry_exhausted_total{error_class} (Counter): Exhausted retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - findocgpt_marketdata_rate_limit_remaining (Gauge): Upstream request budget left
//   - findocgpt_marketdata_rate_limit_blocks_total (Counter): Requests blocked locally
//   - findocgpt_marketdata_rate_limit_throttles_total (Counter): Requests throttled
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   rate(findocgpt_cache_hits_total[5m]) /
//   (rate(findocgpt_cache_hits_total[5m]) + rate(findocgpt_cache_misses_total[5m]))
//
//   # P95 Loader Latency
//   histogram_quantile(0.95, rate(findocgpt_cache_loader_duration_seconds_bucket[5m]))
//
//   # Memory Footprint
//   findocgpt_cache_size_bytes
//
//   # Reclaim Rate
//   rate(findocgpt_cache_evictions_total[1h])
