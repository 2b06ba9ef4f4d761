package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cachewarm/cachewarm/pkg/store"
)

func TestStore_PutGet(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.Put(ctx, "a", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, found, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if string(data) != "payload" {
		t.Errorf("unexpected data: %q", data)
	}

	// Mutating the returned slice must not affect the cached copy.
	data[0] = 'X'
	again, _, _ := s.Get(ctx, "a")
	if string(again) != "payload" {
		t.Errorf("cached copy was mutated: %q", again)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	_, found, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestStore_EmptyKey(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.Put(ctx, "", []byte("x")); !errors.Is(err, store.ErrKeyEmpty) {
		t.Errorf("expected ErrKeyEmpty from put, got %v", err)
	}
	if _, _, err := s.Get(ctx, ""); !errors.Is(err, store.ErrKeyEmpty) {
		t.Errorf("expected ErrKeyEmpty from get, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_ = s.Put(ctx, "a", []byte("x"))
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := s.Get(ctx, "a"); found {
		t.Error("deleted key still present")
	}

	// Deleting a missing key is fine.
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("delete of missing key errored: %v", err)
	}
}

func TestStore_ExpireOlderThan(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_ = s.Put(ctx, "old", []byte("x"))
	time.Sleep(30 * time.Millisecond)
	_ = s.Put(ctx, "new", []byte("y"))

	removed, err := s.ExpireOlderThan(ctx, 20*time.Millisecond)
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
	s := New()
	defer func() { _ = s.Close() }()
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
	if stats.Bytes != 8 {
		t.Errorf("expected 8 bytes, got %d", stats.Bytes)
	}
}

func TestStore_Closed(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, "a", []byte("x"))

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed from get, got %v", err)
	}
	if err := s.Put(ctx, "a", nil); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed from put, got %v", err)
	}
}
