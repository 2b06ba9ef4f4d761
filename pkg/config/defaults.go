package config

import (
	"strings"
	"time"
)

// Default values applied to unset fields.
const (
	DefaultRequestTimeout      = 1 * time.Second
	DefaultTTL                 = 30 * time.Minute
	DefaultMaintenanceInterval = 1 * time.Minute
	DefaultWorkerCount         = 4
	DefaultQueueSize           = 1024
	DefaultPollInterval        = 5 * time.Second
	DefaultStatusCheckInterval = 5 * time.Second
	DefaultParallelDownloads   = 4
	DefaultFetchTimeout        = 30 * time.Second
	DefaultMetricsListenAddr   = ":9180"
)

// GetDefaultConfig returns the configuration used when no config file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any unspecified fields. Zero values are
// replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyRemoteDefaults(&cfg.Remote)
	applyCacheDefaults(&cfg.Cache)
	applyDownloaderDefaults(&cfg.Downloader)
	applyWorkersDefaults(&cfg.Workers)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaintenanceInterval == 0 {
		cfg.MaintenanceInterval = DefaultMaintenanceInterval
	}
}

func applyDownloaderDefaults(cfg *DownloaderConfig) {
	if cfg.Source == "" {
		cfg.Source = "http"
	}
	if cfg.ParallelDownloads == 0 {
		cfg.ParallelDownloads = DefaultParallelDownloads
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
}

func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.Count == 0 {
		cfg.Count = DefaultWorkerCount
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StatusCheckInterval == 0 {
		cfg.StatusCheckInterval = DefaultStatusCheckInterval
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultMetricsListenAddr
	}
}
