// Package prefetch implements best-effort prefetch notification for the
// remote caching tier: workers announce which dataset indices they are about
// to read so the storage side can warm them.
//
// Everything in this package is fire-and-forget. Transport failures are
// logged and dropped; they never affect fetch correctness.
package prefetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
)

// IndexBatch is an ordered sequence of dataset item indices fetched together.
type IndexBatch []int64

// DefaultRequestTimeout bounds every notification POST. The remote side
// treats warming as advisory, so a slow endpoint is a dropped notification,
// not a stall.
const DefaultRequestTimeout = 1 * time.Second

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	// Endpoint is the prefetch notification URL. Blank disables notification.
	Endpoint string

	// Timeout bounds each POST. Default: DefaultRequestTimeout.
	Timeout time.Duration

	// Metrics is optional; pass nil to disable collection.
	Metrics NotifierMetrics
}

// Notifier posts index batches to the remote caching tier.
//
// The delivery contract is "dispatched", never "delivered": a non-200
// response or transport error is logged and the notification is dropped.
// No retries happen at this layer.
type Notifier struct {
	endpoint string
	client   *http.Client
	metrics  NotifierMetrics
}

// NewNotifier creates a Notifier. The underlying HTTP client is shared by
// all notification and registration calls, mirroring one session per worker.
func NewNotifier(cfg NotifierConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Notifier{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		metrics:  cfg.Metrics,
	}
}

// Endpoint returns the configured notification endpoint.
func (n *Notifier) Endpoint() string {
	return n.endpoint
}

// Notify serializes batches and issues a single POST to the notification
// endpoint. Empty input and a blank endpoint are silent no-ops. All
// failures are swallowed after logging.
func (n *Notifier) Notify(ctx context.Context, batches []IndexBatch) {
	if len(batches) == 0 || n.endpoint == "" {
		return
	}

	start := time.Now()
	err := n.post(ctx, n.endpoint, batches)
	if n.metrics != nil {
		indices := 0
		for _, b := range batches {
			indices += len(b)
		}
		n.metrics.ObserveNotify(indices, time.Since(start), err == nil)
	}
	if err != nil {
		logger.Warn("prefetch notification dropped",
			"endpoint", n.endpoint,
			"batches", len(batches),
			"error", err)
	}
}

// NotifyAsync schedules Notify on a detached goroutine and returns
// immediately. The background call is not bound to the caller's context.
func (n *Notifier) NotifyAsync(batches []IndexBatch) {
	if len(batches) == 0 || n.endpoint == "" {
		return
	}
	go n.Notify(context.Background(), batches)
}

// RegisterPIDs announces live worker process ids to the lifecycle tracker.
// A blank endpoint means the feature is disabled and is a silent no-op.
func (n *Notifier) RegisterPIDs(ctx context.Context, pids []int, endpoint string) {
	if endpoint == "" {
		return
	}
	if err := n.post(ctx, endpoint, pids); err != nil {
		logger.Warn("pid registration dropped",
			"endpoint", endpoint,
			"pids", pids,
			"error", err)
	}
}

// UnregisterPIDs removes worker process ids from the lifecycle tracker.
// Same fire-and-forget semantics as RegisterPIDs; the remote side treats a
// missing unregister as dead-worker detection via timeout.
func (n *Notifier) UnregisterPIDs(ctx context.Context, pids []int, endpoint string) {
	if endpoint == "" {
		return
	}
	if err := n.post(ctx, endpoint, pids); err != nil {
		logger.Warn("pid unregistration dropped",
			"endpoint", endpoint,
			"pids", pids,
			"error", err)
	}
}

// post issues a single JSON POST and requires exactly HTTP 200.
func (n *Notifier) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Read a little of the body for the log line, then drop it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
