package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func TestStore_ExportRestore(t *testing.T) {
	src, clock := newTestStore(t)
	src.Put("a", map[string]any{"price": 187.5}, time.Hour)
	src.Put("b", "plain", time.Hour)
	src.Put("stale", "gone", time.Millisecond)
	src.Put("opaque", make(chan int), time.Hour) // not JSON-marshalable

	clock.Advance(time.Minute)

	entries := src.Export()
	if len(entries) != 2 {
		t.Fatalf("Export returned %d entries, want 2 (expired and opaque skipped)", len(entries))
	}

	dst := NewStore(4)
	dst.now = clock.Now
	if restored := dst.Restore(entries); restored != 2 {
		t.Errorf("Restore() = %d, want 2", restored)
	}

	value, ok := dst.Get("a")
	if !ok {
		t.Fatal("restored entry not readable")
	}
	if diff := cmp.Diff(map[string]any{"price": 187.5}, value); diff != "" {
		t.Errorf("restored value mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Restore_SkipsExpired(t *testing.T) {
	store, clock := newTestStore(t)

	entries := []SnapshotEntry{
		{Key: "old", Value: []byte(`"v"`), ExpiresAt: clock.Now().Add(-time.Minute)},
		{Key: "live", Value: []byte(`"v"`), ExpiresAt: clock.Now().Add(time.Hour)},
		{Key: "garbage", Value: []byte(`{not json`), ExpiresAt: clock.Now().Add(time.Hour)},
	}

	if restored := store.Restore(entries); restored != 1 {
		t.Errorf("Restore() = %d, want 1", restored)
	}
	if _, ok := store.Get("old"); ok {
		t.Error("expired snapshot entry restored")
	}
	if _, ok := store.Get("live"); !ok {
		t.Error("live snapshot entry not restored")
	}
}

func TestFileSnapshotter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "snapshot.json")
	snapshotter := NewFileSnapshotter(path)
	ctx := context.Background()

	entries := []SnapshotEntry{
		{
			Key:       "stock_data:abc",
			Value:     []byte(`{"price":187.5}`),
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		},
	}

	if err := snapshotter.Save(ctx, entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := snapshotter.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(entries, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSnapshotter_MissingFile(t *testing.T) {
	snapshotter := NewFileSnapshotter(filepath.Join(t.TempDir(), "missing.json"))

	entries, err := snapshotter.Load(context.Background())
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if entries != nil {
		t.Errorf("Load of missing file returned %d entries, want none", len(entries))
	}
}

// TestService_SnapshotLifecycle persists a populated cache on Stop and
// restores it into a fresh service on Start.
func TestService_SnapshotLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	ctx := context.Background()

	newSvc := func() *Service {
		t.Helper()
		cfg := DefaultConfig()
		cfg.Logger = zerolog.Nop()
		cfg.Snapshotter = NewFileSnapshotter(path)
		svc, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return svc
	}

	first := newSvc()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err := first.GetOrCompute(ctx, "quote", Params{"symbol": "AAPL"}, "static",
		func(ctx context.Context) (any, error) { return "persisted", nil })
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if err := first.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	second := newSvc()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start of second service failed: %v", err)
	}
	defer second.Stop(ctx)

	// The restored entry serves a hit without invoking the loader.
	value, err := second.GetOrCompute(ctx, "quote", Params{"symbol": "AAPL"}, "static",
		func(ctx context.Context) (any, error) {
			t.Error("loader invoked despite restored snapshot")
			return nil, nil
		})
	if err != nil {
		t.Fatalf("GetOrCompute after restore failed: %v", err)
	}
	if value != "persisted" {
		t.Errorf("restored value = %v, want persisted", value)
	}

	snap := second.Stats()
	if snap.HitCount != 1 {
		t.Errorf("HitCount = %d after restored hit, want 1", snap.HitCount)
	}
}
