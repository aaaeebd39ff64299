package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_HitMissCounts(t *testing.T) {
	c := NewCollector()

	c.RecordHit()
	c.RecordHit()
	c.RecordMiss(10 * time.Millisecond)

	snap := c.Snapshot()
	if snap.HitCount != 2 {
		t.Errorf("HitCount = %d, want 2", snap.HitCount)
	}
	if snap.MissCount != 1 {
		t.Errorf("MissCount = %d, want 1", snap.MissCount)
	}
	if snap.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", snap.TotalCalls)
	}
	if want := 2.0 / 3.0; snap.HitRate != want {
		t.Errorf("HitRate = %f, want %f", snap.HitRate, want)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	if snap.TotalCalls != 0 {
		t.Errorf("TotalCalls = %d, want 0", snap.TotalCalls)
	}
	if snap.HitRate != 0 {
		t.Errorf("HitRate = %f, want 0", snap.HitRate)
	}
	if snap.AvgLatencyMs != 0 {
		t.Errorf("AvgLatencyMs = %f, want 0", snap.AvgLatencyMs)
	}
	if snap.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestCollector_Latency(t *testing.T) {
	c := NewCollector()

	c.RecordMiss(10 * time.Millisecond)
	c.RecordMiss(20 * time.Millisecond)
	c.RecordMiss(30 * time.Millisecond)

	snap := c.Snapshot()
	if snap.AvgLatencyMs != 20 {
		t.Errorf("AvgLatencyMs = %f, want 20", snap.AvgLatencyMs)
	}
	if snap.P95LatencyMs != 30 {
		t.Errorf("P95LatencyMs = %f, want 30", snap.P95LatencyMs)
	}
}

func TestCollector_LatencyReservoirBounded(t *testing.T) {
	c := NewCollector()

	// Overfill the reservoir; the running average still covers everything.
	for i := 0; i < 3*latencyReservoirSize; i++ {
		c.RecordMiss(10 * time.Millisecond)
	}

	if len(c.samples) != latencyReservoirSize {
		t.Errorf("reservoir size = %d, want %d", len(c.samples), latencyReservoirSize)
	}
	snap := c.Snapshot()
	if snap.AvgLatencyMs != 10 {
		t.Errorf("AvgLatencyMs = %f, want 10", snap.AvgLatencyMs)
	}
}

func TestCollector_Evictions(t *testing.T) {
	c := NewCollector()

	c.RecordEviction(7)
	c.RecordEviction(3)

	snap := c.Snapshot()
	if snap.EvictionCount != 10 {
		t.Errorf("EvictionCount = %d, want 10", snap.EvictionCount)
	}
	if snap.LastSweepReclaimed != 3 {
		t.Errorf("LastSweepReclaimed = %d, want 3", snap.LastSweepReclaimed)
	}

	// An empty sweep resets the last-reclaimed gauge but not the total.
	c.RecordEviction(0)
	snap = c.Snapshot()
	if snap.EvictionCount != 10 {
		t.Errorf("EvictionCount = %d after empty sweep, want 10", snap.EvictionCount)
	}
	if snap.LastSweepReclaimed != 0 {
		t.Errorf("LastSweepReclaimed = %d after empty sweep, want 0", snap.LastSweepReclaimed)
	}
}

func TestCollector_StoreStats(t *testing.T) {
	c := NewCollector()
	c.SetStoreStats(42, 1<<20)

	snap := c.Snapshot()
	if snap.EntryCount != 42 {
		t.Errorf("EntryCount = %d, want 42", snap.EntryCount)
	}
	if snap.EstimatedMemoryBytes != 1<<20 {
		t.Errorf("EstimatedMemoryBytes = %d, want %d", snap.EstimatedMemoryBytes, 1<<20)
	}
}

// TestCollector_ConcurrentConsistency hammers the collector from many
// goroutines and checks the hit+miss==total invariant on every snapshot
// taken while updates are in flight.
func TestCollector_ConcurrentConsistency(t *testing.T) {
	c := NewCollector()

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	done := make(chan struct{})

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if i%3 == 0 {
					c.RecordMiss(time.Millisecond)
				} else {
					c.RecordHit()
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snap := c.Snapshot()
		if snap.HitCount+snap.MissCount != snap.TotalCalls {
			t.Fatalf("torn snapshot: hits %d + misses %d != total %d",
				snap.HitCount, snap.MissCount, snap.TotalCalls)
		}
		select {
		case <-done:
			final := c.Snapshot()
			if final.TotalCalls != workers*perWorker {
				t.Errorf("TotalCalls = %d, want %d", final.TotalCalls, workers*perWorker)
			}
			return
		default:
		}
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name    string
		samples []time.Duration
		p       float64
		want    time.Duration
	}{
		{"empty", nil, 0.95, 0},
		{"single", []time.Duration{5}, 0.95, 5},
		{"unsorted input", []time.Duration{30, 10, 20}, 0.5, 20},
		{"p100 clamps", []time.Duration{1, 2, 3}, 1.0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.samples, tt.p); got != tt.want {
				t.Errorf("percentile() = %v, want %v", got, tt.want)
			}
		})
	}
}
