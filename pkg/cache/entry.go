package cache

import (
	"encoding/json"
	"time"
)

// nominalEntrySize is the size estimate used when a value cannot be measured.
const nominalEntrySize = 64

// entry is a single cached value with its expiry bookkeeping. Entries are
// owned exclusively by the Store and never handed out to callers; only the
// payload value leaves the store.
type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	sizeBytes int64
}

// expired reports whether the entry is stale at the given instant. An entry
// is readable as a hit iff now < expiresAt.
func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// estimateSize returns a best-effort memory estimate for a cached value.
// Byte slices and strings are measured directly; everything else is measured
// by its JSON encoding, falling back to a nominal constant.
func estimateSize(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case []byte:
		return int64(len(val))
	case string:
		return int64(len(val))
	case json.RawMessage:
		return int64(len(val))
	}
	if data, err := json.Marshal(v); err == nil {
		return int64(len(data))
	}
	return nominalEntrySize
}
