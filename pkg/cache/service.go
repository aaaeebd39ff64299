package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/harshh999/FinDocGPT/pkg/logging"
	"github.com/harshh999/FinDocGPT/pkg/telemetry"
)

// Loader computes the value for a cache miss. The context passed to a loader
// is the service's lifetime context, not any single waiter's: a waiter that
// abandons the call does not cancel the load for the other waiters. Loaders
// must be safe to re-invoke after a prior failure.
type Loader func(ctx context.Context) (any, error)

// Config holds the cache service configuration.
type Config struct {
	// TTLClasses maps class names to entry lifetimes. At least one class
	// is required; requests naming an unknown class fail with
	// ErrUnknownTTLClass.
	TTLClasses map[string]time.Duration

	// ShardCount is the number of store shards (rounded up to a power of
	// two). Zero uses DefaultShardCount.
	ShardCount int

	// SweepInterval is how often the background sweeper reclaims expired
	// entries. Zero uses DefaultSweepInterval.
	SweepInterval time.Duration

	// Snapshotter, if set, persists a best-effort snapshot on Stop and
	// restores it on Start. Failures are logged, never fatal.
	Snapshotter Snapshotter

	// Logger for service and sweeper events.
	Logger zerolog.Logger
}

// DefaultSweepInterval is the default eviction sweep cadence.
const DefaultSweepInterval = 5 * time.Minute

// DefaultConfig returns a configuration with the standard TTL class table.
// Class durations mirror how long each data family stays useful: intraday
// prices go stale in minutes, company fundamentals last hours.
func DefaultConfig() Config {
	return Config{
		TTLClasses: map[string]time.Duration{
			"intraday": 15 * time.Minute,
			"market":   30 * time.Minute,
			"daily":    60 * time.Minute,
			"summary":  2 * time.Hour,
			"static":   4 * time.Hour,
		},
		ShardCount:    DefaultShardCount,
		SweepInterval: DefaultSweepInterval,
		Logger:        logging.NewLogger("cache-service"),
	}
}

// Service is the public entry point of the caching layer. It derives keys,
// applies TTL classes, guarantees at most one in-flight loader per key
// (single-flight), and feeds the telemetry collector.
//
// A Service has an explicit lifecycle: construct with New, Start to launch
// the sweeper, Stop at shutdown. Pass it to collaborators that need it; it is
// not a package-level singleton.
type Service struct {
	store     *Store
	collector *telemetry.Collector
	group     singleflight.Group

	ttl         map[string]time.Duration
	snapshotter Snapshotter
	interval    time.Duration
	logger      zerolog.Logger

	// lifeCtx bounds loader execution and the sweeper; cancelled by Stop.
	lifeCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a cache service. The TTL class table must be non-empty and all
// durations positive; an invalid table is a configuration error at startup,
// not a silent default.
func New(cfg Config) (*Service, error) {
	if len(cfg.TTLClasses) == 0 {
		return nil, fmt.Errorf("at least one TTL class is required")
	}
	ttl := make(map[string]time.Duration, len(cfg.TTLClasses))
	for class, d := range cfg.TTLClasses {
		if d <= 0 {
			return nil, fmt.Errorf("TTL class %q has non-positive duration %v", class, d)
		}
		ttl[class] = d
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:       NewStore(cfg.ShardCount),
		collector:   telemetry.NewCollector(),
		ttl:         ttl,
		snapshotter: cfg.Snapshotter,
		interval:    interval,
		logger:      cfg.Logger,
		lifeCtx:     lifeCtx,
		cancel:      cancel,
	}, nil
}

// Start restores a snapshot (best-effort, if a snapshotter is configured)
// and launches the eviction sweeper. The passed context only bounds the
// snapshot restore; the sweeper runs until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("cache service already stopped")
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("cache service already started")
	}
	s.started = true
	s.mu.Unlock()

	if s.snapshotter != nil {
		entries, err := s.snapshotter.Load(ctx)
		if err != nil {
			CacheErrors.WithLabelValues("snapshot").Inc()
			s.logger.Warn().Err(err).Msg("Snapshot restore failed")
		} else if n := s.store.Restore(entries); n > 0 {
			s.logger.Info().Int("entries", n).Msg("Restored cache snapshot")
		}
	}

	sweeper := NewSweeper(s.store, s.collector, s.interval, s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sweeper.Run(s.lifeCtx)
	}()

	s.logger.Info().
		Int("ttl_classes", len(s.ttl)).
		Dur("sweep_interval", s.interval).
		Msg("Cache service started")
	return nil
}

// Stop cancels the sweeper and any in-flight loaders, then writes a
// best-effort snapshot. Safe to call once after Start.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.snapshotter != nil {
		if err := s.snapshotter.Save(ctx, s.store.Export()); err != nil {
			CacheErrors.WithLabelValues("snapshot").Inc()
			s.logger.Warn().Err(err).Msg("Snapshot save failed")
		}
	}

	s.logger.Info().Msg("Cache service stopped")
	return nil
}

// GetOrCompute returns the cached value for (prefix, params), or invokes
// loader exactly once per key per expiry window and caches its result.
//
// Concurrent callers for the same uncached key converge on a single loader
// execution and share its outcome. A caller whose context expires abandons
// the wait with ctx.Err(); the loader keeps running for the remaining
// waiters. Loader failures are wrapped in ErrLoaderFailed, never cached, and
// the next call retries.
func (s *Service) GetOrCompute(ctx context.Context, prefix string, params Params, ttlClass string, loader Loader) (any, error) {
	ttl, ok := s.ttl[ttlClass]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTTLClass, ttlClass)
	}
	if loader == nil {
		return nil, ErrNilLoader
	}

	key, err := BuildKey(prefix, params)
	if err != nil {
		CacheErrors.WithLabelValues("key").Inc()
		return nil, err
	}

	if value, ok := s.store.Get(key); ok {
		s.collector.RecordHit()
		CacheHits.Inc()
		s.logger.Debug().Str("key", key.String()).Msg("Cache hit")
		return value, nil
	}

	ch := s.group.DoChan(key.String(), func() (any, error) {
		// Another flight may have filled the store between our miss and
		// joining the group.
		if value, ok := s.store.Get(key); ok {
			s.collector.RecordHit()
			CacheHits.Inc()
			return value, nil
		}

		start := time.Now()
		value, err := loader(s.lifeCtx)
		elapsed := time.Since(start)
		if err != nil {
			CacheErrors.WithLabelValues("load").Inc()
			s.logger.Warn().
				Err(err).
				Str("key", key.String()).
				Dur("duration", elapsed).
				Msg("Loader failed")
			return nil, fmt.Errorf("%w: %w", ErrLoaderFailed, err)
		}

		s.store.Put(key, value, ttl)
		s.collector.RecordMiss(elapsed)
		CacheMisses.Inc()
		LoaderDuration.Observe(elapsed.Seconds())
		s.logger.Debug().
			Str("key", key.String()).
			Str("ttl_class", ttlClass).
			Dur("duration", elapsed).
			Msg("Cache miss, value computed")
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate removes the entry for (prefix, params) before its TTL expires.
// Returns true if an entry was removed.
func (s *Service) Invalidate(prefix string, params Params) (bool, error) {
	key, err := BuildKey(prefix, params)
	if err != nil {
		return false, err
	}
	removed := s.store.Invalidate(key)
	if removed {
		CacheEvictions.Inc()
		s.logger.Debug().Str("key", key.String()).Msg("Entry invalidated")
	}
	return removed, nil
}

// InvalidateAll empties the cache and returns the number of entries removed.
func (s *Service) InvalidateAll() int {
	removed := s.store.Purge()
	if removed > 0 {
		CacheEvictions.Add(float64(removed))
		s.logger.Info().Int("entries", removed).Msg("Cache purged")
	}
	return removed
}

// Stats returns a consistent metrics snapshot, with the entry count and
// memory estimate recomputed from the store at read time.
func (s *Service) Stats() telemetry.Snapshot {
	entries := s.store.Len()
	size := s.store.SizeBytes()
	s.collector.SetStoreStats(entries, size)
	CacheEntries.Set(float64(entries))
	CacheSizeBytes.Set(float64(size))
	return s.collector.Snapshot()
}
