package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/cachewarm/cachewarm/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
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

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("x"))
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Error("deleted key still present")
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "a", []byte("12345"))
	_ = s.Put(ctx, "b", []byte("123"))

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
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

func TestStore_New_RequiresDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error when no dir and not in-memory")
	}
}
