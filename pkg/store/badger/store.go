// Package badger provides a BadgerDB-backed payload cache store.
//
// Payloads survive worker restarts, so a re-run over the same dataset can
// hit the local cache immediately. Expiry is handled natively through
// Badger's entry TTL; ExpireOlderThan only triggers value-log GC.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cachewarm/cachewarm/pkg/store"
)

// Config holds configuration for the Badger store.
type Config struct {
	// Dir is the directory for the Badger database files.
	Dir string

	// TTL is the lifetime applied to each entry. Zero disables expiry.
	TTL time.Duration

	// InMemory runs Badger without touching disk. Used by tests.
	InMemory bool
}

// Store is a BadgerDB-backed implementation of store.Store.
type Store struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
}

// New opens (or creates) a Badger-backed store at cfg.Dir.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger store: dir is required")
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %q: %w", cfg.Dir, err)
	}
	return &Store{db: db, ttl: cfg.TTL}, nil
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

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %q: %w", key, err)
	}
	return data, true, nil
}

// Put stores a payload under key, applying the configured TTL.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return store.ErrKeyEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger put %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %q: %w", key, err)
	}
	return nil
}

// ExpireOlderThan triggers value-log GC; entry expiry itself is TTL-driven.
// The returned count is always zero since Badger reclaims lazily.
func (s *Store) ExpireOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrStoreClosed
	}

	// ErrNoRewrite just means there was nothing worth compacting.
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return 0, fmt.Errorf("badger value log gc: %w", err)
	}
	return 0, nil
}

// Stats returns entry count and total payload bytes.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return store.Stats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Stats{}, store.ErrStoreClosed
	}

	var st store.Stats
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			st.Entries++
			st.Bytes += it.Item().ValueSize()
		}
		return nil
	})
	if err != nil {
		return store.Stats{}, fmt.Errorf("badger stats: %w", err)
	}
	return st, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
