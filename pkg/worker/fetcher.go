package worker

import (
	"context"
	"errors"

	"github.com/cachewarm/cachewarm/pkg/prefetch"
	"github.com/cachewarm/cachewarm/pkg/readpath"
)

// ErrEndOfData is the "sequence exhausted" condition. Iterable-style
// fetchers return it (possibly wrapped) when their source runs dry;
// map-style fetchers never do.
var ErrEndOfData = errors.New("end of data")

// Fetcher retrieves and collates the dataset items for one index batch.
// The dataset definition and collation live behind this interface, outside
// this layer.
type Fetcher interface {
	Fetch(ctx context.Context, indices prefetch.IndexBatch) (any, error)
}

// FetcherFactory builds a worker's fetch capability. It is invoked at
// startup and again on every Resume, because worker reuse requires a fresh
// fetcher per iteration. The read provider is the capability dataset code
// must open files through; in cache-backed mode it serves prefetched
// payloads locally.
type FetcherFactory func(info Info, reads readpath.Provider) (Fetcher, error)

// FetcherFunc adapts a func to the Fetcher interface.
type FetcherFunc func(ctx context.Context, indices prefetch.IndexBatch) (any, error)

// Fetch calls the wrapped func.
func (f FetcherFunc) Fetch(ctx context.Context, indices prefetch.IndexBatch) (any, error) {
	return f(ctx, indices)
}
