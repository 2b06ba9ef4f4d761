package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cachewarm/cachewarm/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithPath(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "items/1", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, found, err := s.Get(ctx, "items/1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if string(data) != "payload" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestStore_PutOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("first"))
	if err := s.Put(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _, _ := s.Get(ctx, "k")
	if string(data) != "second" {
		t.Errorf("expected overwritten payload, got %q", data)
	}
}

func TestStore_PutLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	_ = s.Put(context.Background(), "k", []byte("x"))

	entries, err := os.ReadDir(s.BasePath())
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_DeletePrunesEmptyDirs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "a/b/c", []byte("x"))
	if err := s.Delete(ctx, "a/b/c"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.BasePath(), "a")); !os.IsNotExist(err) {
		t.Error("empty parent directory was not pruned")
	}
	if _, err := os.Stat(s.BasePath()); err != nil {
		t.Error("base path must survive pruning")
	}
}

func TestStore_ExpireOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "old", []byte("x"))
	_ = s.Put(ctx, "new", []byte("y"))

	// Age the first file past the cutoff.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(s.BasePath(), "old"), past, past); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	removed, err := s.ExpireOlderThan(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, found, _ := s.Get(ctx, "old"); found {
		t.Error("expired entry still present")
	}
	if _, found, _ := s.Get(ctx, "new"); !found {
		t.Error("fresh entry was expired")
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "a", []byte("12345"))
	_ = s.Put(ctx, "sub/b", []byte("123"))

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Bytes != 8 {
		t.Errorf("expected 8 bytes, got %d", stats.Bytes)
	}
}

func TestStore_Closed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.Put(ctx, "a", nil); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestNew_RequiresBasePath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base path")
	}
}
