package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is the default number of shards in a Store.
const DefaultShardCount = 32

// Store is a sharded, concurrent key -> entry table with per-entry expiry.
// Keys are distributed across shards by hash, so a full sweep only ever locks
// one shard at a time and never stalls unrelated Get/Put traffic.
//
// All methods are safe for concurrent use.
type Store struct {
	shards []*storeShard
	mask   uint64

	// now is overridable for tests.
	now func() time.Time
}

type storeShard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// NewStore creates a store with the given shard count. The count is rounded
// up to the next power of two; values < 1 fall back to DefaultShardCount.
func NewStore(shardCount int) *Store {
	if shardCount < 1 {
		shardCount = DefaultShardCount
	}
	n := nextPowerOfTwo(shardCount)

	shards := make([]*storeShard, n)
	for i := range shards {
		shards[i] = &storeShard{entries: make(map[Key]*entry)}
	}
	return &Store{
		shards: shards,
		mask:   uint64(n - 1),
		now:    time.Now,
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (s *Store) shardFor(key Key) *storeShard {
	return s.shards[xxhash.Sum64String(string(key))&s.mask]
}

// Get returns the cached value for key. An entry whose expiry has passed is
// treated as not found and removed opportunistically.
func (s *Store) Get(key Key) (any, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		sh.mu.Lock()
		// Re-check under the write lock: a fresh entry may have replaced
		// the expired one in the meantime.
		if cur, ok := sh.entries[key]; ok && cur == e {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores value under key with the given TTL, replacing any existing
// entry. The entry becomes visible atomically as a whole.
func (s *Store) Put(key Key, value any, ttl time.Duration) {
	now := s.now()
	e := &entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		sizeBytes: estimateSize(value),
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = e
	sh.mu.Unlock()
}

// Invalidate removes key from the store. Returns true if an entry was removed.
func (s *Store) Invalidate(key Key) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.entries[key]
	delete(sh.entries, key)
	sh.mu.Unlock()
	return ok
}

// Purge removes all entries and returns the number removed.
func (s *Store) Purge() int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += len(sh.entries)
		sh.entries = make(map[Key]*entry)
		sh.mu.Unlock()
	}
	return removed
}

// Sweep removes every entry whose expiry has passed and returns the number
// reclaimed. Shards are locked one at a time, so a sweep never blocks the
// whole table.
func (s *Store) Sweep() int {
	reclaimed := 0
	for _, sh := range s.shards {
		now := s.now()
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, key)
				reclaimed++
			}
		}
		sh.mu.Unlock()
	}
	return reclaimed
}

// Len returns the total number of resident entries, including entries that
// have expired but not yet been swept.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

// SizeBytes returns the estimated memory footprint of all resident entries.
func (s *Store) SizeBytes() int64 {
	var total int64
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			total += e.sizeBytes
		}
		sh.mu.RUnlock()
	}
	return total
}
