package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

// PoolConfig configures a worker Pool.
type PoolConfig struct {
	// Workers is the number of loops to run. Required.
	Workers int

	// BaseSeed seeds per-worker randomness (worker seed = base + id).
	BaseSeed int64

	// Dataset is the opaque dataset handle passed to each worker's Info.
	Dataset any

	// NewFetcher builds each worker's fetch capability. Required.
	NewFetcher FetcherFactory

	// ConsumerFor builds the prefetch consumer for a worker. Optional;
	// nil means no prefetch dispatch.
	ConsumerFor func(workerID int) *prefetch.QueueConsumer

	// CacheRead enables cache-backed reads on every loop. Optional.
	CacheRead *CacheReadConfig

	// QueueSize bounds each worker's inbound request buffer. Default: 64.
	QueueSize int

	// StatusCheckInterval is forwarded to each loop.
	StatusCheckInterval time.Duration

	// OnResult observes every worker result. Optional.
	OnResult func(workerID int, r Result)
}

type poolWorker struct {
	id       int
	requests chan Message
	results  chan Result
	exited   chan struct{}
	loop     *Loop
	consumer *prefetch.QueueConsumer
}

// Pool runs a set of worker loops and fans index batches out to them
// round-robin. It owns the request and result channels and the shared
// shutdown event.
type Pool struct {
	workers  []*poolWorker
	done     *Event
	onResult func(workerID int, r Result)

	seq  atomic.Uint64
	next atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a Pool. Call Start to launch the loops.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, errors.New("at least one worker is required")
	}
	if cfg.NewFetcher == nil {
		return nil, errors.New("fetcher factory is required")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	done := NewEvent()
	workers := make([]*poolWorker, 0, cfg.Workers)
	for id := 0; id < cfg.Workers; id++ {
		w := &poolWorker{
			id:       id,
			requests: make(chan Message, queueSize),
			results:  make(chan Result, queueSize),
			exited:   make(chan struct{}),
		}
		if cfg.ConsumerFor != nil {
			w.consumer = cfg.ConsumerFor(id)
		}

		loop, err := NewLoop(LoopConfig{
			Info:                NewInfo(id, cfg.Workers, cfg.BaseSeed, cfg.Dataset),
			Requests:            w.requests,
			Results:             w.results,
			Done:                done,
			NewFetcher:          cfg.NewFetcher,
			Consumer:            w.consumer,
			StatusCheckInterval: cfg.StatusCheckInterval,
			CacheRead:           cfg.CacheRead,
		})
		if err != nil {
			return nil, err
		}
		w.loop = loop
		workers = append(workers, w)
	}

	return &Pool{
		workers:  workers,
		done:     done,
		onResult: cfg.OnResult,
	}, nil
}

// Done returns the pool's shared shutdown event.
func (p *Pool) Done() *Event {
	return p.done
}

// Start launches every consumer, loop, and result drain. Repeated calls
// are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for _, w := range p.workers {
		if w.consumer != nil {
			w.consumer.Start(ctx)
		}

		p.wg.Add(2)
		go func(w *poolWorker) {
			defer p.wg.Done()
			if err := w.loop.Run(ctx); err != nil {
				logger.Error("worker loop exited with error", "worker_id", w.id, "error", err)
			}
			close(w.exited)
			close(w.results)
		}(w)
		go func(w *poolWorker) {
			defer p.wg.Done()
			for r := range w.results {
				if p.onResult != nil {
					p.onResult(w.id, r)
				}
			}
		}(w)
	}
}

// Submit fans batches out to the workers round-robin. A batch whose
// worker queue is full is dropped with a warning. Returns false once the
// pool is stopping.
func (p *Pool) Submit(batches []prefetch.IndexBatch) bool {
	if p.done.IsSet() {
		return false
	}
	for _, batch := range batches {
		w := p.workers[p.next.Add(1)%uint64(len(p.workers))]
		msg := Fetch{Seq: p.seq.Add(1), Indices: batch}
		select {
		case w.requests <- msg:
		default:
			logger.Warn("worker request queue full, dropping batch",
				"worker_id", w.id,
				"indices", len(batch),
			)
		}
	}
	return true
}

// Resume broadcasts a Resume message to every worker, clearing any
// iteration-end state before the next pass over the data.
func (p *Pool) Resume() {
	for _, w := range p.workers {
		select {
		case w.requests <- Resume{}:
		default:
			logger.Warn("worker request queue full, dropping resume", "worker_id", w.id)
		}
	}
}

// Stop signals shutdown, delivers the terminal marker to every worker, and
// waits for every loop and consumer to drain. Safe to call once; repeated
// calls are no-ops.
//
// The marker is sent as a message rather than by closing the request
// channels: Submit and Resume may still be sending from other goroutines,
// and a send on a closed channel would crash the process.
func (p *Pool) Stop(consumerTimeout time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// Setting the shared event first authorizes the Stop each loop is
	// about to receive.
	p.done.Set()
	for _, w := range p.workers {
		select {
		case w.requests <- Stop{}:
		case <-w.exited:
			// Loop already gone (context cancellation or dead parent).
		}
	}
	p.wg.Wait()

	for _, w := range p.workers {
		if w.consumer != nil {
			w.consumer.Stop(consumerTimeout)
		}
	}
}
