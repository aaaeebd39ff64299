// Package telemetry tracks aggregate cache performance counters: hits,
// misses, loader latency, evictions, and memory usage.
//
// The Collector keeps all counters behind a single mutex so Snapshot always
// observes a consistent point in time; hit rate is never derived from a hit
// count and a miss count read in different states.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// latencyReservoirSize bounds the sample window used for the p95 estimate.
const latencyReservoirSize = 100

// Collector accumulates cache telemetry. The zero value is not usable; use
// NewCollector. All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	hits      uint64
	misses    uint64
	evictions uint64

	lastSweepReclaimed int

	latencySum   time.Duration
	latencyCount uint64
	samples      []time.Duration
	sampleNext   int

	entryCount  int
	memoryBytes int64

	started time.Time
	now     func() time.Time
}

// NewCollector creates a collector with its uptime clock started.
func NewCollector() *Collector {
	return &Collector{
		samples: make([]time.Duration, 0, latencyReservoirSize),
		started: time.Now(),
		now:     time.Now,
	}
}

// RecordHit counts one lookup served from cache.
func (c *Collector) RecordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

// RecordMiss counts one loader execution and its latency.
func (c *Collector) RecordMiss(latency time.Duration) {
	c.mu.Lock()
	c.misses++
	c.latencySum += latency
	c.latencyCount++
	if len(c.samples) < latencyReservoirSize {
		c.samples = append(c.samples, latency)
	} else {
		c.samples[c.sampleNext] = latency
	}
	c.sampleNext = (c.sampleNext + 1) % latencyReservoirSize
	c.mu.Unlock()
}

// RecordEviction records the outcome of a sweep. A zero count still updates
// LastSweepReclaimed, so the snapshot reflects the most recent sweep.
func (c *Collector) RecordEviction(count int) {
	c.mu.Lock()
	if count > 0 {
		c.evictions += uint64(count)
	}
	c.lastSweepReclaimed = count
	c.mu.Unlock()
}

// SetStoreStats updates the resident entry count and memory estimate gauges.
func (c *Collector) SetStoreStats(entryCount int, memoryBytes int64) {
	c.mu.Lock()
	c.entryCount = entryCount
	c.memoryBytes = memoryBytes
	c.mu.Unlock()
}

// Snapshot holds a consistent point-in-time view of the collector.
type Snapshot struct {
	HitCount   uint64  `json:"hit_count"`
	MissCount  uint64  `json:"miss_count"`
	TotalCalls uint64  `json:"total_calls"`
	HitRate    float64 `json:"hit_rate"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`

	EntryCount           int   `json:"entry_count"`
	EstimatedMemoryBytes int64 `json:"estimated_memory_bytes"`

	EvictionCount      uint64 `json:"eviction_count"`
	LastSweepReclaimed int    `json:"last_sweep_reclaimed"`

	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// Snapshot returns the current counter values. TotalCalls is derived from
// the hit and miss counts read under the same lock, so
// HitCount + MissCount == TotalCalls always holds.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Snapshot{
		HitCount:             c.hits,
		MissCount:            c.misses,
		TotalCalls:           c.hits + c.misses,
		EntryCount:           c.entryCount,
		EstimatedMemoryBytes: c.memoryBytes,
		EvictionCount:        c.evictions,
		LastSweepReclaimed:   c.lastSweepReclaimed,
		UptimeSeconds:        now.Sub(c.started).Seconds(),
		Timestamp:            now,
	}
	if s.TotalCalls > 0 {
		s.HitRate = float64(c.hits) / float64(s.TotalCalls)
	}
	if c.latencyCount > 0 {
		avg := c.latencySum / time.Duration(c.latencyCount)
		s.AvgLatencyMs = float64(avg) / float64(time.Millisecond)
		s.P95LatencyMs = float64(percentile(c.samples, 0.95)) / float64(time.Millisecond)
	}
	return s
}

// percentile estimates the p-th percentile from the reservoir.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
