package downloader

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cachewarm/cachewarm/pkg/prefetch"
	memorystore "github.com/cachewarm/cachewarm/pkg/store/memory"
)

// mapSource serves payloads from a map and counts fetches per key.
type mapSource struct {
	mu      sync.Mutex
	items   map[string][]byte
	fetches map[string]int
}

func newMapSource(items map[string][]byte) *mapSource {
	return &mapSource{items: items, fetches: make(map[string]int)}
}

func (s *mapSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[key]++
	data, ok := s.items[key]
	if !ok {
		return nil, fmt.Errorf("no payload for key %q", key)
	}
	return data, nil
}

func (s *mapSource) fetchCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[key]
}

func itemKey(index int64) string {
	return strconv.FormatInt(index, 10)
}

func waitForKey(t *testing.T, st *memorystore.Store, key string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, found, err := st.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("store get failed: %v", err)
		}
		if found {
			return data
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("key %q never appeared in the store", key)
	return nil
}

func TestCacheDownloader_FillsStore(t *testing.T) {
	source := newMapSource(map[string][]byte{
		"1": []byte("one"),
		"2": []byte("two"),
	})
	st := memorystore.New()
	defer func() { _ = st.Close() }()

	d := NewCacheDownloader(CacheDownloaderConfig{
		Source: source,
		Store:  st,
		Keys:   itemKey,
	})
	d.BatchDownloadAsync([]prefetch.IndexBatch{{1, 2}})

	if got := waitForKey(t, st, "1"); string(got) != "one" {
		t.Errorf("key 1: got %q", got)
	}
	if got := waitForKey(t, st, "2"); string(got) != "two" {
		t.Errorf("key 2: got %q", got)
	}
}

func TestCacheDownloader_SkipsCachedPayloads(t *testing.T) {
	source := newMapSource(map[string][]byte{"7": []byte("seven")})
	st := memorystore.New()
	defer func() { _ = st.Close() }()

	if err := st.Put(context.Background(), "7", []byte("already here")); err != nil {
		t.Fatalf("seed put failed: %v", err)
	}

	d := NewCacheDownloader(CacheDownloaderConfig{
		Source: source,
		Store:  st,
		Keys:   itemKey,
	})
	d.BatchDownloadAsync([]prefetch.IndexBatch{{7}})

	// Give the async download a chance to run, then confirm it skipped.
	time.Sleep(100 * time.Millisecond)
	if n := source.fetchCount("7"); n != 0 {
		t.Errorf("expected no fetch for cached key, got %d", n)
	}
	data, _, _ := st.Get(context.Background(), "7")
	if string(data) != "already here" {
		t.Errorf("cached payload was overwritten: %q", data)
	}
}

func TestCacheDownloader_MissingPayloadIsDropped(t *testing.T) {
	source := newMapSource(nil)
	st := memorystore.New()
	defer func() { _ = st.Close() }()

	d := NewCacheDownloader(CacheDownloaderConfig{
		Source: source,
		Store:  st,
		Keys:   itemKey,
	})
	d.BatchDownloadAsync([]prefetch.IndexBatch{{3}})

	time.Sleep(100 * time.Millisecond)
	if _, found, _ := st.Get(context.Background(), "3"); found {
		t.Error("failed download must not populate the store")
	}
}
