package downloader

import (
	"context"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
	"github.com/cachewarm/cachewarm/pkg/store"
)

// DefaultParallelDownloads bounds concurrent payload fetches per downloader.
const DefaultParallelDownloads = 4

// CacheDownloaderConfig configures a CacheDownloader.
type CacheDownloaderConfig struct {
	// Source is the remote storage tier to fetch payloads from. Required.
	Source Source

	// Store receives the fetched payloads. Required.
	Store store.Store

	// Keys maps item indices to storage keys. Required.
	Keys KeyFunc

	// ParallelDownloads bounds concurrent fetches.
	// Default: DefaultParallelDownloads.
	ParallelDownloads int

	// FetchTimeout bounds each individual payload fetch. Default: 30s.
	FetchTimeout time.Duration
}

// CacheDownloader pre-fetches item payloads into the local cache store so
// that cache-aware reads hit locally instead of going to the network.
//
// Downloads are deduplicated against the store: an index whose payload is
// already cached is skipped. Failures are logged and dropped; a missed
// prefetch only means the read path falls back to its direct source.
type CacheDownloader struct {
	source       Source
	store        store.Store
	keys         KeyFunc
	fetchTimeout time.Duration

	// Bounds total concurrent fetches across all BatchDownloadAsync calls.
	sem chan struct{}
}

// NewCacheDownloader creates a CacheDownloader.
func NewCacheDownloader(cfg CacheDownloaderConfig) *CacheDownloader {
	if cfg.ParallelDownloads <= 0 {
		cfg.ParallelDownloads = DefaultParallelDownloads
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &CacheDownloader{
		source:       cfg.Source,
		store:        cfg.Store,
		keys:         cfg.Keys,
		fetchTimeout: cfg.FetchTimeout,
		sem:          make(chan struct{}, cfg.ParallelDownloads),
	}
}

// BatchDownloadAsync schedules the download of every index in batches and
// returns immediately.
func (d *CacheDownloader) BatchDownloadAsync(batches []prefetch.IndexBatch) {
	for _, batch := range batches {
		for _, index := range batch {
			go d.download(index)
		}
	}
}

func (d *CacheDownloader) download(index int64) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), d.fetchTimeout)
	defer cancel()

	key := d.keys(index)
	if _, found, err := d.store.Get(ctx, key); err == nil && found {
		return
	}

	data, err := d.source.Fetch(ctx, key)
	if err != nil {
		logger.Warn("batch download dropped",
			"index", index,
			"key", key,
			"error", err)
		return
	}
	if err := d.store.Put(ctx, key, data); err != nil {
		logger.Warn("batch download cache write failed",
			"index", index,
			"key", key,
			"error", err)
	}
}
