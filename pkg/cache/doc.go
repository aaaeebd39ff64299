// Package cache provides the caching and telemetry layer that sits between
// analysis modules and the expensive operations they wrap (network fetches,
// model fitting, document scans).
//
// Features:
//
// - Deterministic cache keys derived from an operation prefix and parameters
// - Named TTL classes resolved to concrete durations at call time
// - Single-flight loading: one computation per key per expiry window
// - Sharded concurrent store with a background eviction sweeper
// - Aggregate telemetry (hit rate, latency, memory) and Prometheus metrics
// - Optional best-effort snapshots to disk or Redis across restarts
//
// # Basic Usage
//
//	svc, err := cache.New(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	if err := svc.Start(ctx); err != nil {
//		return err
//	}
//	defer svc.Stop(context.Background())
//
//	value, err := svc.GetOrCompute(ctx, "stock_data",
//		cache.Params{"symbol": "AAPL", "interval": "5m"},
//		"intraday",
//		func(ctx context.Context) (any, error) {
//			return fetchStockData(ctx, "AAPL", "5m")
//		})
//
// The first call invokes the loader and caches the result for the class TTL;
// subsequent calls within the window are hits. Concurrent callers for the
// same uncached key share one loader execution.
//
// # Invalidation
//
//	svc.Invalidate("stock_data", cache.Params{"symbol": "AAPL", "interval": "5m"})
//	svc.InvalidateAll()
//
// # Telemetry
//
//	snap := svc.Stats()
//	fmt.Printf("hit rate %.1f%%, %d entries, %d bytes\n",
//		snap.HitRate*100, snap.EntryCount, snap.EstimatedMemoryBytes)
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - findocgpt_cache_hits_total - Cache hits
//   - findocgpt_cache_misses_total - Cache misses
//   - findocgpt_cache_evictions_total - Entries reclaimed
//   - findocgpt_cache_entries - Resident entries
//   - findocgpt_cache_size_bytes - Estimated memory footprint
//   - findocgpt_cache_loader_duration_seconds - Loader latency
//   - findocgpt_cache_sweep_duration_seconds - Sweep latency
//   - findocgpt_cache_errors_total{operation} - Operation errors
//
// # Error Handling
//
// Request-path failures surface as typed errors: ErrInvalidParameterKind for
// unserializable parameters, ErrUnknownTTLClass for an unconfigured class,
// and ErrLoaderFailed wrapping the loader's own error. Loader failures are
// never cached, so the next call retries. Background sweep failures are
// logged and retried on the next tick without touching the request path.
package cache
