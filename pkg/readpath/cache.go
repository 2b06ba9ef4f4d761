package readpath

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/store"
)

// CacheProviderConfig configures a CacheProvider.
type CacheProviderConfig struct {
	// RootDir scopes interception: only paths under it consult the cache.
	RootDir string

	// Store is the local payload cache filled by the batch downloader.
	Store store.Store

	// Fallback services cache misses and paths outside RootDir.
	// Default: Direct.
	Fallback Provider

	// Metrics is optional; pass nil to disable collection.
	Metrics ReadMetrics
}

// CacheProvider is the cache-aware Provider. Reads under the managed root
// are served from the local payload store when possible and fall back to
// the direct path otherwise; a miss is never an error.
type CacheProvider struct {
	mu       sync.RWMutex
	rootDir  string
	cache    store.Store
	fallback Provider
	metrics  ReadMetrics

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCacheProvider creates a CacheProvider.
func NewCacheProvider(cfg CacheProviderConfig) *CacheProvider {
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = NewDirect()
	}
	return &CacheProvider{
		rootDir:  filepath.Clean(cfg.RootDir),
		cache:    cfg.Store,
		fallback: fallback,
		metrics:  cfg.Metrics,
	}
}

// SetParams re-scopes interception to rootDir. Safe to call while reads
// are in flight.
func (p *CacheProvider) SetParams(rootDir string) {
	p.mu.Lock()
	p.rootDir = filepath.Clean(rootDir)
	p.mu.Unlock()
}

// managedKey reports whether path falls under the managed root and, if so,
// returns its cache key (the root-relative path in slash form).
func (p *CacheProvider) managedKey(path string) (string, bool) {
	p.mu.RLock()
	root := p.rootDir
	p.mu.RUnlock()

	if root == "" || root == "." {
		return "", false
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Open opens path, serving from the cache when the payload is present.
func (p *CacheProvider) Open(path string) (io.ReadCloser, error) {
	data, ok := p.cached(path)
	if ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return p.fallback.Open(path)
}

// ReadObject reads the object at path, serving from the cache when present.
func (p *CacheProvider) ReadObject(path string) ([]byte, error) {
	data, ok := p.cached(path)
	if ok {
		return data, nil
	}
	return p.fallback.ReadObject(path)
}

// cached looks path up in the payload store. Store errors degrade to a
// miss: the read path must keep working when the cache does not.
func (p *CacheProvider) cached(path string) ([]byte, bool) {
	key, managed := p.managedKey(path)
	if !managed {
		return nil, false
	}

	data, found, err := p.cache.Get(context.Background(), key)
	if err != nil {
		logger.Warn("cache read failed, falling back", "key", key, "error", err)
		found = false
	}
	if found {
		p.hits.Add(1)
	} else {
		p.misses.Add(1)
	}
	if p.metrics != nil {
		p.metrics.RecordRead(found)
	}
	return data, found
}

// Stats returns cumulative cache hit and miss counts.
func (p *CacheProvider) Stats() (hits, misses uint64) {
	return p.hits.Load(), p.misses.Load()
}

// StartMaintenance runs hook every interval on a background goroutine until
// the returned stop function is called. The maintenance policy itself
// (cache-entry expiry, stats reporting) belongs to the caller; this only
// owns the timer lifecycle. Stop is idempotent.
func (p *CacheProvider) StartMaintenance(interval time.Duration, hook func(ctx context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hook(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
