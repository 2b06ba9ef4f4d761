package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRegistryUnavailable is returned when a downloader handle cannot be
// resolved before the deadline. It usually means the dataset setup phase
// never ran, i.e. a misconfiguration rather than a slow start.
var ErrRegistryUnavailable = errors.New("downloader registry unavailable")

// Resolution backoff bounds. Dataset setup and worker startup race, so
// absence is retried; the backoff keeps the retry cheap, the deadline keeps
// permanent misconfiguration visible.
const (
	DefaultResolveTimeout = 2 * time.Minute
	resolveInitialBackoff = 100 * time.Millisecond
	resolveMaxBackoff     = 2 * time.Second
)

// Registry maps dataset identity to its installed BatchDownloader.
//
// The registry is populated asynchronously by the dataset setup phase, which
// is outside this layer. Lookups therefore poll with backoff instead of
// failing on a missing key.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]BatchDownloader

	// refresh, when set, is invoked before each retry to let the setup
	// phase re-publish entries (mirrors a shared-manager refresh).
	refresh func()
}

// NewRegistry creates an empty registry. refresh may be nil.
func NewRegistry(refresh func()) *Registry {
	return &Registry{
		entries: make(map[string]BatchDownloader),
		refresh: refresh,
	}
}

// Install publishes the downloader for datasetID, replacing any previous one.
func (r *Registry) Install(datasetID string, d BatchDownloader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[datasetID] = d
}

// Remove deletes the downloader for datasetID.
func (r *Registry) Remove(datasetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, datasetID)
}

// Lookup returns the downloader for datasetID without waiting.
func (r *Registry) Lookup(datasetID string) (BatchDownloader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[datasetID]
	return d, ok && d != nil
}

// Resolve returns the downloader for datasetID, polling with bounded
// exponential backoff until it appears. When ctx carries no deadline,
// DefaultResolveTimeout applies. On expiry the returned error wraps
// ErrRegistryUnavailable.
func (r *Registry) Resolve(ctx context.Context, datasetID string) (BatchDownloader, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultResolveTimeout)
		defer cancel()
	}

	backoff := resolveInitialBackoff
	for {
		if d, ok := r.Lookup(datasetID); ok {
			return d, nil
		}
		if r.refresh != nil {
			r.refresh()
			if d, ok := r.Lookup(datasetID); ok {
				return d, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dataset %q: %w", datasetID, ErrRegistryUnavailable)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > resolveMaxBackoff {
			backoff = resolveMaxBackoff
		}
	}
}
