package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshh999/FinDocGPT/pkg/telemetry"
)

// Sweeper periodically reclaims expired entries from a Store and reports the
// counts to the telemetry collector. It runs for the lifetime of its context
// and stops cleanly when that context is cancelled; a failing sweep is logged
// and retried on the next tick, never fatal.
type Sweeper struct {
	store     *Store
	collector *telemetry.Collector
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSweeper creates a sweeper. A non-positive interval falls back to
// DefaultSweepInterval.
func NewSweeper(store *Store, collector *telemetry.Collector, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:     store,
		collector: collector,
		interval:  interval,
		logger:    logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run executes the sweep loop until ctx is cancelled. It blocks; callers
// normally run it in its own goroutine.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("Eviction sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Eviction sweeper stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep performs one tick. A panicking store scan is contained here so the
// loop survives to the next tick.
func (w *Sweeper) sweep() {
	defer func() {
		if r := recover(); r != nil {
			CacheErrors.WithLabelValues("sweep").Inc()
			w.logger.Error().Interface("panic", r).Msg("Sweep failed")
		}
	}()

	start := time.Now()
	reclaimed := w.store.Sweep()
	elapsed := time.Since(start)

	w.collector.RecordEviction(reclaimed)
	w.collector.SetStoreStats(w.store.Len(), w.store.SizeBytes())
	if reclaimed > 0 {
		CacheEvictions.Add(float64(reclaimed))
	}
	CacheEntries.Set(float64(w.store.Len()))
	CacheSizeBytes.Set(float64(w.store.SizeBytes()))
	SweepDuration.Observe(elapsed.Seconds())

	w.logger.Debug().
		Int("reclaimed", reclaimed).
		Dur("duration", elapsed).
		Msg("Sweep completed")
}
