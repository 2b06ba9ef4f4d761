// Package store defines the local payload cache store used by cache-aware
// reads. The batch downloader fills the store ahead of read time; the
// read-provider consults it before falling back to the direct path.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by Store implementations.
var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrKeyEmpty is returned when a key is empty.
	ErrKeyEmpty = errors.New("key is empty")
)

// Store is a key-value cache for prefetched item payloads.
//
// Keys are dataset item paths relative to the cache root. Implementations
// must be safe for concurrent use: the batch downloader writes from
// background goroutines while the worker loop reads.
type Store interface {
	// Get returns the cached payload for key. The second return value
	// reports whether the key was present; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a payload under key, overwriting any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ExpireOlderThan removes entries stored more than age ago and returns
	// how many were removed. Called from the maintenance timer; the expiry
	// policy itself lives with the caller.
	ExpireOlderThan(ctx context.Context, age time.Duration) (int, error)

	// Stats returns entry count and total payload bytes.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// Stats describes the current contents of a store.
type Stats struct {
	Entries int
	Bytes   int64
}
