package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
)

// Dispatcher is the capability the consumer hands batches to when batch
// download mode is enabled. pkg/downloader implementations satisfy it.
type Dispatcher interface {
	// BatchDownloadAsync schedules a download of the given batches and
	// returns immediately. Fire-and-forget.
	BatchDownloadAsync(batches []IndexBatch)
}

// ConsumerConfig configures a QueueConsumer.
type ConsumerConfig struct {
	// QueueSize bounds the pending-batch queue. Default: 1024.
	QueueSize int

	// PollInterval bounds each queue wait so the stop signal is re-checked
	// periodically. Default: 5s.
	PollInterval time.Duration

	// Notifier receives batches when no Downloader is configured. Required.
	Notifier *Notifier

	// Downloader, when non-nil, receives batches instead of the Notifier
	// (batch-download mode).
	Downloader Dispatcher

	// Metrics is optional; pass nil to disable collection.
	Metrics NotifierMetrics
}

// QueueConsumer drains the queue of pending index batches produced by the
// fetch path and dispatches them to the notifier or batch downloader.
//
// It runs on its own goroutine per worker so the fetch path never blocks on
// network I/O. Dispatch failures are discarded: nothing on this path may
// propagate back into fetching.
type QueueConsumer struct {
	queue        chan IndexBatch
	pollInterval time.Duration
	notifier     *Notifier
	downloader   Dispatcher
	metrics      NotifierMetrics

	mu        sync.Mutex
	started   bool
	stopped   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewQueueConsumer creates a QueueConsumer. Call Start to begin draining.
func NewQueueConsumer(cfg ConsumerConfig) *QueueConsumer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &QueueConsumer{
		queue:        make(chan IndexBatch, cfg.QueueSize),
		pollInterval: cfg.PollInterval,
		notifier:     cfg.Notifier,
		downloader:   cfg.Downloader,
		metrics:      cfg.Metrics,
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// Start begins draining the queue. Repeated calls are no-ops.
func (c *QueueConsumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop signals the drain loop and waits up to timeout for it to exit.
// Pending batches are not flushed; delivery is best-effort by contract.
// Stopping a consumer that never started still closes it to new batches.
func (c *QueueConsumer) Stop(timeout time.Duration) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	close(c.stopCh)
	if !started {
		return
	}
	select {
	case <-c.stoppedCh:
	case <-time.After(timeout):
		logger.Warn("prefetch consumer stop timed out", "pending", len(c.queue))
	}
}

// Enqueue offers a batch to the consumer without blocking. When the queue
// is full the batch is dropped with a warning; a stalled notification path
// must never stall fetching.
func (c *QueueConsumer) Enqueue(batch IndexBatch) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case <-c.stopCh:
		return false
	default:
	}
	select {
	case c.queue <- batch:
		if c.metrics != nil {
			c.metrics.RecordQueueDepth(len(c.queue))
		}
		return true
	default:
		logger.Warn("prefetch queue full, dropping batch", "indices", len(batch))
		if c.metrics != nil {
			c.metrics.RecordDrop("queue_full")
		}
		return false
	}
}

// Pending returns the number of batches waiting to be dispatched.
func (c *QueueConsumer) Pending() int {
	return len(c.queue)
}

func (c *QueueConsumer) run(ctx context.Context) {
	defer close(c.stoppedCh)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case batch := <-c.queue:
			c.dispatch(batch)
		case <-ticker.C:
			// Idle wake-up so the stop signal is observed even when the
			// queue stays empty.
		}
	}
}

// dispatch hands one batch to the configured notification path. The batch
// is wrapped in a one-element outer sequence, matching the wire format the
// storage tier expects. Panics are recovered and counted as drops.
func (c *QueueConsumer) dispatch(batch IndexBatch) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("prefetch dispatch failed", "panic", r)
			if c.metrics != nil {
				c.metrics.RecordDrop("dispatch_panic")
			}
		}
	}()

	batches := []IndexBatch{batch}
	if c.downloader != nil {
		c.downloader.BatchDownloadAsync(batches)
		return
	}
	c.notifier.NotifyAsync(batches)
}
