package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cachewarm/cachewarm/internal/debugserver"
	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/config"
	"github.com/cachewarm/cachewarm/pkg/downloader"
	"github.com/cachewarm/cachewarm/pkg/metrics"
	promexport "github.com/cachewarm/cachewarm/pkg/metrics/prometheus"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
	"github.com/cachewarm/cachewarm/pkg/readpath"
	"github.com/cachewarm/cachewarm/pkg/store"
	badgerstore "github.com/cachewarm/cachewarm/pkg/store/badger"
	fsstore "github.com/cachewarm/cachewarm/pkg/store/fs"
	memorystore "github.com/cachewarm/cachewarm/pkg/store/memory"
	"github.com/cachewarm/cachewarm/pkg/worker"
)

// defaultDatasetID keys the single dataset the daemon serves.
const defaultDatasetID = "default"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cachewarm worker pool",
	Long: `Start the cachewarm worker pool with the specified configuration.

The pool registers its pid with the remote caching tier, runs the
configured number of data-loading workers, and accepts index batches over
the debug HTTP listener (POST /prefetch). Each accepted batch is queued
for prefetch notification (or batch download) before the payloads are
read.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/cachewarm/config.yaml.

Examples:
  # Start with default config
  cachewarm-worker start

  # Start with custom config file
  cachewarm-worker start --config /etc/cachewarm/config.yaml

  # Start with environment variable overrides
  CACHEWARM_LOGGING_LEVEL=DEBUG cachewarm-worker start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "listen_addr", cfg.Metrics.ListenAddr)
	}

	// Local payload store.
	payloadStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize payload store: %w", err)
	}
	defer func() {
		if err := payloadStore.Close(); err != nil {
			logger.Error("payload store close error", "error", err)
		}
	}()

	notifierMetrics := promexport.NewNotifierMetrics()
	notifier := prefetch.NewNotifier(prefetch.NotifierConfig{
		Endpoint: cfg.Remote.PrefetchEndpoint,
		Timeout:  cfg.Remote.RequestTimeout,
		Metrics:  notifierMetrics,
	})
	pidRegistry := prefetch.NewPidRegistry(notifier,
		cfg.Remote.RegisterEndpoint,
		cfg.Remote.UnregisterEndpoint,
	)

	// Batch-downloader handle for the dataset. In notify-only mode the
	// handle just relays batches to the storage tier.
	registry := downloader.NewRegistry(nil)
	batchDL, err := buildDownloader(ctx, cfg, payloadStore, notifier)
	if err != nil {
		return err
	}
	registry.Install(defaultDatasetID, batchDL)

	var cacheRead *worker.CacheReadConfig
	if cfg.Downloader.UseBatchDownload {
		cacheRead = &worker.CacheReadConfig{
			RootDir:   cfg.Cache.RootDir,
			Store:     payloadStore,
			Registry:  registry,
			DatasetID: defaultDatasetID,
			Metrics:   promexport.NewReadMetrics(),
		}
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		Workers:    cfg.Workers.Count,
		BaseSeed:   cfg.Workers.BaseSeed,
		NewFetcher: warmReadFetcher(cfg.Cache.RootDir),
		ConsumerFor: func(workerID int) *prefetch.QueueConsumer {
			var dispatcher prefetch.Dispatcher
			if cfg.Downloader.UseBatchDownload {
				dispatcher = batchDL
			}
			return prefetch.NewQueueConsumer(prefetch.ConsumerConfig{
				QueueSize:    cfg.Workers.QueueSize,
				PollInterval: cfg.Workers.PollInterval,
				Notifier:     notifier,
				Downloader:   dispatcher,
				Metrics:      notifierMetrics,
			})
		},
		CacheRead:           cacheRead,
		QueueSize:           cfg.Workers.QueueSize,
		StatusCheckInterval: cfg.Workers.StatusCheckInterval,
		OnResult:            logResult,
	})
	if err != nil {
		return err
	}

	pidRegistry.Register(ctx, os.Getpid())
	defer pidRegistry.Unregister(context.Background(), os.Getpid())

	pool.Start(ctx)
	logger.Info("worker pool started",
		"workers", cfg.Workers.Count,
		"batch_download", cfg.Downloader.UseBatchDownload,
		"prefetch_endpoint", cfg.Remote.PrefetchEndpoint,
	)

	// Cache maintenance timer.
	stopMaintenance := startMaintenance(ctx, payloadStore, cfg.Cache.TTL, cfg.Cache.MaintenanceInterval)
	defer stopMaintenance()

	// Debug listener: health, stats, metrics, and batch submission.
	debugErr := make(chan error, 1)
	if cfg.Metrics.ListenAddr != "" {
		srv := debugserver.NewServer(cfg.Metrics.ListenAddr, storeStats(payloadStore), pool.Submit)
		go func() {
			debugErr <- srv.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-debugErr:
		if err != nil {
			logger.Error("debug server failed", "error", err)
		}
	case <-ctx.Done():
	}

	pool.Stop(5 * time.Second)
	cancel()
	logger.Info("worker pool stopped")
	return nil
}

// buildStore selects the payload store backend from configuration.
func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Cache.Store {
	case "badger":
		return badgerstore.New(badgerstore.Config{
			Dir: cfg.Cache.BadgerDir,
			TTL: cfg.Cache.TTL,
		})
	case "fs":
		return fsstore.New(fsstore.DefaultConfig(filepath.Join(cfg.Cache.RootDir, ".cachewarm")))
	default:
		return memorystore.New(), nil
	}
}

// buildDownloader builds the dataset's batch-downloader handle.
func buildDownloader(ctx context.Context, cfg *config.Config, payloadStore store.Store, notifier *prefetch.Notifier) (downloader.BatchDownloader, error) {
	if !cfg.Downloader.UseBatchDownload {
		return downloader.NewNotifyDownloader(notifier), nil
	}

	var source downloader.Source
	var err error
	switch cfg.Downloader.Source {
	case "s3":
		source, err = downloader.NewS3Source(ctx, downloader.S3SourceConfig{
			Bucket:          cfg.Downloader.S3.Bucket,
			KeyPrefix:       cfg.Downloader.S3.KeyPrefix,
			Region:          cfg.Downloader.S3.Region,
			Endpoint:        cfg.Downloader.S3.Endpoint,
			AccessKeyID:     cfg.Downloader.S3.AccessKeyID,
			SecretAccessKey: cfg.Downloader.S3.SecretAccessKey,
			ForcePathStyle:  cfg.Downloader.S3.ForcePathStyle,
		})
	default:
		source, err = downloader.NewHTTPSource(cfg.Downloader.HTTPBaseURL, cfg.Downloader.FetchTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payload source: %w", err)
	}

	return downloader.NewCacheDownloader(downloader.CacheDownloaderConfig{
		Source:            source,
		Store:             payloadStore,
		Keys:              itemKey,
		ParallelDownloads: cfg.Downloader.ParallelDownloads,
		FetchTimeout:      cfg.Downloader.FetchTimeout,
	}), nil
}

// itemKey maps an item index to its storage key. The same mapping is used
// by the batch downloader and the warm-read fetcher, so prefetched
// payloads are found again on the read path.
func itemKey(index int64) string {
	return strconv.FormatInt(index, 10)
}

// batchSummary is the payload a daemon worker produces for each fetched
// batch: how many items resolved and how many bytes were read.
type batchSummary struct {
	Indices int `json:"indices"`
	Items   int `json:"items"`
	Bytes   int `json:"bytes"`
}

// warmReadFetcher builds the daemon's fetch capability: read every index's
// payload through the worker's read provider. Missing payloads are not
// errors; they count as unresolved items.
func warmReadFetcher(rootDir string) worker.FetcherFactory {
	return func(info worker.Info, reads readpath.Provider) (worker.Fetcher, error) {
		return worker.FetcherFunc(func(ctx context.Context, indices prefetch.IndexBatch) (any, error) {
			summary := batchSummary{Indices: len(indices)}
			for _, index := range indices {
				data, err := reads.ReadObject(filepath.Join(rootDir, itemKey(index)))
				if err != nil {
					continue
				}
				summary.Items++
				summary.Bytes += len(data)
			}
			return summary, nil
		}), nil
	}
}

// logResult observes worker results for operator visibility.
func logResult(workerID int, r worker.Result) {
	switch v := r.(type) {
	case worker.Payload:
		logger.Debug("batch fetched", "worker_id", workerID, "seq", v.Seq)
	case worker.Failure:
		logger.Warn("batch failed", "worker_id", workerID, "seq", v.Seq, "error", v.Err)
	case worker.IterationEnd:
		logger.Info("worker reached end of data", "worker_id", v.WorkerID)
	case worker.ResumeAck:
		logger.Debug("worker resumed", "worker_id", workerID)
	}
}

// storeStats builds the /stats snapshot from the payload store.
func storeStats(payloadStore store.Store) debugserver.StatsFunc {
	return func() map[string]any {
		stats, err := payloadStore.Stats(context.Background())
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{
			"cache_entries": stats.Entries,
			"cache_bytes":   stats.Bytes,
		}
	}
}

// startMaintenance runs the cache expiry timer. The returned stop function
// is idempotent.
func startMaintenance(ctx context.Context, payloadStore store.Store, ttl, interval time.Duration) (stop func()) {
	if ttl <= 0 || interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := payloadStore.ExpireOlderThan(ctx, ttl)
				if err != nil {
					logger.Warn("cache maintenance error", "error", err)
				} else if removed > 0 {
					logger.Debug("cache maintenance removed expired entries", "removed", removed)
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
