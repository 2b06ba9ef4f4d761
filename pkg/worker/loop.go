package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/downloader"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
	"github.com/cachewarm/cachewarm/pkg/readpath"
	"github.com/cachewarm/cachewarm/pkg/store"
)

// DefaultStatusCheckInterval bounds every inbound-channel wait so the loop
// periodically re-checks the watchdog. It is a responsiveness knob, not a
// correctness-critical delay.
const DefaultStatusCheckInterval = 5 * time.Second

// ErrProtocolViolation is returned when the terminal Stop marker arrives
// while neither the shared shutdown flag nor the worker's own exhaustion
// state authorizes it. It indicates parent/worker desynchronization and is
// deliberately loud.
var ErrProtocolViolation = errors.New(
	"protocol violation: terminal marker received without shutdown or exhaustion")

// CacheReadConfig enables cache-backed reads for a worker: startup resolves
// the dataset's batch-downloader handle and installs a cache-aware read
// provider scoped to RootDir.
type CacheReadConfig struct {
	// RootDir is the managed cache root directory.
	RootDir string

	// Store is the local payload cache consulted by reads.
	Store store.Store

	// Registry resolves the dataset's BatchDownloader handle.
	Registry *downloader.Registry

	// DatasetID keys the registry lookup.
	DatasetID string

	// Metrics is optional; pass nil to disable collection.
	Metrics readpath.ReadMetrics
}

// LoopConfig configures a worker Loop.
type LoopConfig struct {
	// Info is this worker's identity. Required.
	Info Info

	// Requests is the inbound control/request channel. Required.
	Requests <-chan Message

	// Results is the outbound response channel. Required.
	Results chan<- Result

	// Done is the shared shutdown signal. Required.
	Done *Event

	// NewFetcher builds the fetch capability. Required.
	NewFetcher FetcherFactory

	// Consumer receives each requested index batch for prefetch
	// notification. Optional.
	Consumer *prefetch.QueueConsumer

	// Watchdog detects a dead parent. Optional; defaults to always-alive
	// for in-process pipelines. Spawned worker processes should pass
	// NewParentWatchdog().
	Watchdog Watchdog

	// StatusCheckInterval bounds each inbound wait.
	// Default: DefaultStatusCheckInterval.
	StatusCheckInterval time.Duration

	// CacheRead enables cache-backed reads. Nil means direct reads.
	CacheRead *CacheReadConfig
}

// Loop is the per-worker state machine. It runs until an authorized Stop,
// a dead parent, or context cancellation, and never crashes on fetch-path
// or notification failures.
type Loop struct {
	info          Info
	requests      <-chan Message
	results       chan<- Result
	done          *Event
	newFetcher    FetcherFactory
	consumer      *prefetch.QueueConsumer
	watchdog      Watchdog
	checkInterval time.Duration
	cacheRead     *CacheReadConfig

	installer readpath.Installer
	provider  readpath.Provider

	log *slog.Logger
}

// NewLoop creates a worker Loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Requests == nil || cfg.Results == nil {
		return nil, errors.New("request and result channels are required")
	}
	if cfg.Done == nil {
		return nil, errors.New("shared done event is required")
	}
	if cfg.NewFetcher == nil {
		return nil, errors.New("fetcher factory is required")
	}
	if cfg.Watchdog == nil {
		cfg.Watchdog = alwaysAlive{}
	}
	if cfg.StatusCheckInterval <= 0 {
		cfg.StatusCheckInterval = DefaultStatusCheckInterval
	}

	return &Loop{
		info:          cfg.Info,
		requests:      cfg.Requests,
		results:       cfg.Results,
		done:          cfg.Done,
		newFetcher:    cfg.NewFetcher,
		consumer:      cfg.Consumer,
		watchdog:      cfg.Watchdog,
		checkInterval: cfg.StatusCheckInterval,
		cacheRead:     cfg.CacheRead,
		log:           logger.With("worker_id", cfg.Info.ID),
	}, nil
}

// Run executes the loop. It returns nil on an authorized Stop, a dead
// parent, or context cancellation, and ErrProtocolViolation when the
// terminal marker arrives unauthorized.
//
// Startup failures (downloader resolution, provider installation, fetcher
// construction) are recorded, not raised: the first fetch request returns
// the recorded failure exactly once, so the parent receives a structured
// error instead of a worker crash.
func (l *Loop) Run(ctx context.Context) error {
	var initErr *ErrorEnvelope

	l.provider = readpath.NewDirect()
	if l.cacheRead != nil {
		p, err := l.installer.Install(func() (readpath.Provider, error) {
			return l.installCacheReads(ctx)
		})
		if err != nil {
			initErr = envelope(l.info.ID, err)
		} else {
			l.provider = p
		}
	}

	fetcher, err := l.newFetcher(l.info, l.provider)
	if err != nil && initErr == nil {
		initErr = envelope(l.info.ID, err)
	}

	// iterationEnd marks this worker's own source as exhausted. It gates
	// Stop authorization together with the shared done event and is only
	// cleared by Resume.
	iterationEnd := false

	ticker := time.NewTicker(l.checkInterval)
	defer ticker.Stop()

	for l.watchdog.Alive() {
		var msg Message
		var open bool
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			continue
		case msg, open = <-l.requests:
			if !open {
				// A closed request channel is the terminal marker.
				return l.checkStop(iterationEnd)
			}
		}

		switch m := msg.(type) {
		case Resume:
			// Acknowledge with the untouched echo, then recreate the
			// fetcher for the worker-reuse policy.
			l.emit(ctx, ResumeAck{})
			iterationEnd = false
			if f, err := l.newFetcher(l.info, l.provider); err != nil {
				initErr = envelope(l.info.ID, err)
			} else {
				fetcher = f
			}

		case Stop, nil:
			return l.checkStop(iterationEnd)

		case Fetch:
			if l.done.IsSet() || iterationEnd {
				// Shutdown observed but the terminal marker has not
				// arrived yet: keep consuming, process nothing.
				continue
			}

			if l.consumer != nil {
				l.consumer.Enqueue(m.Indices)
			}

			var res Result
			switch {
			case initErr != nil:
				res = Failure{Seq: m.Seq, Err: initErr}
				initErr = nil // consumed exactly once
			case fetcher == nil:
				res = Failure{Seq: m.Seq, Err: envelope(l.info.ID,
					errors.New("fetcher was never initialized"))}
			default:
				data, err := fetcher.Fetch(ctx, m.Indices)
				switch {
				case err == nil:
					res = Payload{Seq: m.Seq, Data: data}
				case errors.Is(err, ErrEndOfData):
					res = IterationEnd{Seq: m.Seq, WorkerID: l.info.ID}
					iterationEnd = true
				default:
					res = Failure{Seq: m.Seq, Err: envelope(l.info.ID, err)}
				}
			}
			l.emit(ctx, res)
		}
	}

	l.log.Warn("parent process gone, worker exiting")
	return nil
}

// checkStop validates the terminal marker against the authorization rule.
func (l *Loop) checkStop(iterationEnd bool) error {
	if !l.done.IsSet() && !iterationEnd {
		l.log.Error("unauthorized terminal marker")
		return fmt.Errorf("worker %d: %w", l.info.ID, ErrProtocolViolation)
	}
	l.log.Debug("worker received stop")
	return nil
}

// installCacheReads waits for the dataset's downloader handle to become
// resolvable, then builds the cache-aware read provider.
func (l *Loop) installCacheReads(ctx context.Context) (readpath.Provider, error) {
	if _, err := l.cacheRead.Registry.Resolve(ctx, l.cacheRead.DatasetID); err != nil {
		return nil, fmt.Errorf("failed to resolve batch downloader: %w", err)
	}

	return readpath.NewCacheProvider(readpath.CacheProviderConfig{
		RootDir: l.cacheRead.RootDir,
		Store:   l.cacheRead.Store,
		Metrics: l.cacheRead.Metrics,
	}), nil
}

// emit sends a result to the parent. Once the shared shutdown flag is set
// the parent may have stopped draining, so enqueue attempts are discarded
// rather than blocked on.
func (l *Loop) emit(ctx context.Context, r Result) {
	if l.done.IsSet() {
		select {
		case l.results <- r:
		default:
			l.log.Debug("discarding result after shutdown")
		}
		return
	}
	select {
	case l.results <- r:
	case <-l.done.Done():
	case <-ctx.Done():
	}
}
