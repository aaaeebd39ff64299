package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshh999/FinDocGPT/pkg/telemetry"
)

func TestSweeper_ReclaimsExpired(t *testing.T) {
	store := NewStore(4)
	collector := telemetry.NewCollector()

	store.Put("stale", "v", time.Millisecond)
	store.Put("fresh", "v", time.Hour)
	time.Sleep(5 * time.Millisecond)

	sweeper := NewSweeper(store, collector, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Wait for at least one tick to fire.
	deadline := time.After(2 * time.Second)
	for store.Len() != 1 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not reclaim expired entry in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}

	if _, ok := store.Get("fresh"); !ok {
		t.Error("sweeper removed a live entry")
	}
	snap := collector.Snapshot()
	if snap.EvictionCount != 1 {
		t.Errorf("EvictionCount = %d, want 1", snap.EvictionCount)
	}
}

func TestSweeper_SurvivesPanic(t *testing.T) {
	// A sweeper over a nil store panics inside the tick; the loop must
	// contain it and keep running until cancelled.
	sweeper := NewSweeper(nil, telemetry.NewCollector(), 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Let several ticks fire (and panic).
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not survive a panicking sweep")
	}
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	sweeper := NewSweeper(NewStore(1), telemetry.NewCollector(), 0, zerolog.Nop())
	if sweeper.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", sweeper.interval, DefaultSweepInterval)
	}
}
