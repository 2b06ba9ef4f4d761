// Package memory provides an in-memory payload cache store.
//
// Intended for tests and for small datasets that fit in RAM. Entries carry
// their insertion time so the maintenance timer can expire stale payloads.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cachewarm/cachewarm/pkg/store"
)

type entry struct {
	data     []byte
	storedAt time.Time
}

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get returns the cached payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, store.ErrKeyEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, store.ErrStoreClosed
	}

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate cached data.
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return data, true, nil
}

// Put stores a payload under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return store.ErrKeyEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.entries[key] = entry{data: buf, storedAt: time.Now()}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

// ExpireOlderThan removes entries stored more than age ago.
func (s *Store) ExpireOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-age)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrStoreClosed
	}

	removed := 0
	for key, e := range s.entries {
		if e.storedAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats returns entry count and total bytes.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return store.Stats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Stats{}, store.ErrStoreClosed
	}

	st := store.Stats{Entries: len(s.entries)}
	for _, e := range s.entries {
		st.Bytes += int64(len(e.data))
	}
	return st, nil
}

// Close marks the store closed and drops all entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	return nil
}
