// Package downloader provides the batch-download capability behind the
// prefetch pipeline. Two variants exist: a notify-only downloader that
// merely tells the storage tier what is about to be read, and a cache
// downloader that actually pulls item payloads into the local store ahead
// of read time. Both are fire-and-forget.
package downloader

import (
	"context"

	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

// BatchDownloader is the capability resolved per dataset from the Registry.
//
// BatchDownloadAsync must return immediately; all network and storage I/O
// happens out-of-line, and failures are logged and dropped.
type BatchDownloader interface {
	BatchDownloadAsync(batches []prefetch.IndexBatch)
}

// NotifyDownloader is the pure-notification variant: it delegates every
// batch to the prefetch notifier and downloads nothing itself.
type NotifyDownloader struct {
	notifier *prefetch.Notifier
}

// NewNotifyDownloader creates a NotifyDownloader.
func NewNotifyDownloader(n *prefetch.Notifier) *NotifyDownloader {
	return &NotifyDownloader{notifier: n}
}

// BatchDownloadAsync dispatches the batches as a prefetch notification.
func (d *NotifyDownloader) BatchDownloadAsync(batches []prefetch.IndexBatch) {
	d.notifier.NotifyAsync(batches)
}

// Source fetches a single item payload from the remote storage tier.
// Implementations: S3Source, HTTPSource.
type Source interface {
	// Fetch retrieves the payload stored under key.
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// KeyFunc maps a dataset item index to its storage key. Provided by the
// dataset definition, which is outside this layer.
type KeyFunc func(index int64) string
