package downloader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

type nopDownloader struct{}

func (nopDownloader) BatchDownloadAsync([]prefetch.IndexBatch) {}

func TestRegistry_LookupInstalled(t *testing.T) {
	r := NewRegistry(nil)
	r.Install("train", nopDownloader{})

	if _, ok := r.Lookup("train"); !ok {
		t.Error("expected installed downloader to be found")
	}
	if _, ok := r.Lookup("other"); ok {
		t.Error("expected missing dataset to not be found")
	}

	r.Remove("train")
	if _, ok := r.Lookup("train"); ok {
		t.Error("expected removed downloader to be gone")
	}
}

func TestRegistry_ResolveImmediate(t *testing.T) {
	r := NewRegistry(nil)
	r.Install("train", nopDownloader{})

	d, err := r.Resolve(context.Background(), "train")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if d == nil {
		t.Fatal("resolve returned nil downloader")
	}
}

func TestRegistry_ResolveWaitsForRefresh(t *testing.T) {
	var r *Registry
	calls := 0
	r = NewRegistry(func() {
		calls++
		if calls >= 2 {
			r.Install("train", nopDownloader{})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.Resolve(ctx, "train"); err != nil {
		t.Fatalf("resolve failed after refresh published the entry: %v", err)
	}
	if calls < 2 {
		t.Errorf("expected at least 2 refresh calls, got %d", calls)
	}
}

func TestRegistry_ResolveDeadline(t *testing.T) {
	r := NewRegistry(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := r.Resolve(ctx, "missing")
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}
