// Package fs provides a filesystem-backed payload cache store.
//
// Payloads are stored as files under a base directory, one file per dataset
// item key. This is the natural backend when the cache root is a mounted
// directory tree shared with the storage tier.
package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cachewarm/cachewarm/pkg/store"
)

// Config holds configuration for the filesystem store.
type Config struct {
	// BasePath is the root directory for cached payloads.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0o755,
		FileMode:  0o644,
	}
}

// Store is a filesystem-backed implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	fileMode os.FileMode
	closed   bool
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// New creates a new filesystem store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &Store{basePath: cfg.BasePath, fileMode: cfg.FileMode}, nil
}

// NewWithPath creates a filesystem store with default configuration.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// keyPath returns the filesystem path for a cache key.
// Keys use forward slashes as separators.
func (s *Store) keyPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Get returns the cached payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, store.ErrKeyEmpty
	}
	if s.isClosed() {
		return nil, false, store.ErrStoreClosed
	}

	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put stores a payload under key. Writes go to a temporary file first and
// are renamed into place so concurrent readers never see partial data.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return store.ErrKeyEmpty
	}
	if s.isClosed() {
		return store.ErrStoreClosed
	}

	path := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, s.fileMode); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Delete removes key and prunes any empty parent directories.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return store.ErrStoreClosed
	}

	path := s.keyPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			// Not empty, stop.
			break
		}
		dir = filepath.Dir(dir)
	}
}

// ExpireOlderThan removes payload files whose modification time is older
// than age and returns how many were removed.
func (s *Store) ExpireOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if s.isClosed() {
		return 0, store.ErrStoreClosed
	}
	cutoff := time.Now().Add(-age)

	removed := 0
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // raced with a delete
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// Stats returns entry count and total payload bytes.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	if s.isClosed() {
		return store.Stats{}, store.ErrStoreClosed
	}

	var st store.Stats
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		st.Entries++
		st.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return store.Stats{}, err
	}
	return st, nil
}

// BasePath returns the base path of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
