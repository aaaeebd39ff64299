package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisSnapshotKey is the Redis key used when none is configured.
const DefaultRedisSnapshotKey = "findocgpt:cache:snapshot"

// SnapshotEntry is one cache entry in its persisted form. Values are stored
// as JSON, so values restored from a snapshot carry the generic JSON
// representation (maps, slices, float64, string) rather than the original
// concrete type. Callers that type-assert payloads should treat a mismatch as
// a miss and recompute.
type SnapshotEntry struct {
	Key       Key             `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Snapshotter persists a best-effort cache snapshot across restarts. There is
// no durability guarantee: Save and Load failures are logged by the service
// and otherwise ignored.
type Snapshotter interface {
	Save(ctx context.Context, entries []SnapshotEntry) error
	Load(ctx context.Context) ([]SnapshotEntry, error)
}

// Export returns the snapshot form of all live entries. Expired entries and
// values that cannot be marshaled are skipped.
func (s *Store) Export() []SnapshotEntry {
	var out []SnapshotEntry
	for _, sh := range s.shards {
		now := s.now()
		sh.mu.RLock()
		for key, e := range sh.entries {
			if e.expired(now) {
				continue
			}
			data, err := json.Marshal(e.value)
			if err != nil {
				continue
			}
			out = append(out, SnapshotEntry{
				Key:       key,
				Value:     data,
				CreatedAt: e.createdAt,
				ExpiresAt: e.expiresAt,
			})
		}
		sh.mu.RUnlock()
	}
	return out
}

// Restore loads snapshot entries into the store, preserving their original
// expiry. Entries that have expired or fail to decode are skipped. Returns
// the number of entries restored.
func (s *Store) Restore(entries []SnapshotEntry) int {
	restored := 0
	for _, se := range entries {
		if !s.now().Before(se.ExpiresAt) {
			continue
		}
		var value any
		if err := json.Unmarshal(se.Value, &value); err != nil {
			continue
		}
		e := &entry{
			value:     value,
			createdAt: se.CreatedAt,
			expiresAt: se.ExpiresAt,
			sizeBytes: int64(len(se.Value)),
		}
		sh := s.shardFor(se.Key)
		sh.mu.Lock()
		sh.entries[se.Key] = e
		sh.mu.Unlock()
		restored++
	}
	return restored
}

// snapshotFile is the on-disk wrapper around the entry list.
type snapshotFile struct {
	SavedAt time.Time       `json:"saved_at"`
	Entries []SnapshotEntry `json:"entries"`
}

// FileSnapshotter persists snapshots to a JSON file. Writes go through a
// temp file and rename, so a crash mid-save never corrupts a prior snapshot.
type FileSnapshotter struct {
	Path string
}

// NewFileSnapshotter creates a file-backed snapshotter at path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{Path: path}
}

// Save writes the snapshot to disk.
func (f *FileSnapshotter) Save(_ context.Context, entries []SnapshotEntry) error {
	data, err := json.Marshal(snapshotFile{SavedAt: time.Now(), Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot from disk. A missing file is not an error; it
// simply yields no entries.
func (f *FileSnapshotter) Load(_ context.Context) ([]SnapshotEntry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return file.Entries, nil
}

// RedisSnapshotter persists snapshots as a single JSON blob in Redis. This is
// still a best-effort restart aid, not cross-process cache coherence: the
// blob is written once at Stop and read once at Start.
type RedisSnapshotter struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotter creates a Redis-backed snapshotter. An empty key uses
// DefaultRedisSnapshotKey.
func NewRedisSnapshotter(client *redis.Client, key string) *RedisSnapshotter {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisSnapshotKey
	}
	return &RedisSnapshotter{client: client, key: key}
}

// Save stores the snapshot blob in Redis.
func (r *RedisSnapshotter) Save(ctx context.Context, entries []SnapshotEntry) error {
	data, err := json.Marshal(snapshotFile{SavedAt: time.Now(), Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load reads the snapshot blob from Redis. A missing key yields no entries.
func (r *RedisSnapshotter) Load(ctx context.Context) ([]SnapshotEntry, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return file.Entries, nil
}
