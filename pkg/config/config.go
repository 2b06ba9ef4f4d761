// Package config loads and validates cachewarm worker configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CACHEWARM_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full worker-daemon configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Remote configures the storage tier's notification and lifecycle
	// endpoints. Blank endpoints disable the corresponding call.
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Cache configures the managed cache root and the local payload store.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Downloader selects notify-only vs. batch-download mode and the
	// payload source for the latter.
	Downloader DownloaderConfig `mapstructure:"downloader" yaml:"downloader"`

	// Workers configures the fetch loops.
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// Metrics configures the Prometheus registry and debug HTTP listener.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"omitempty,oneof=DEBUG INFO WARN ERROR" yaml:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"             yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// RemoteConfig holds the storage tier endpoints.
type RemoteConfig struct {
	// PrefetchEndpoint receives "about to read" index batches.
	PrefetchEndpoint string `mapstructure:"prefetch_endpoint" validate:"omitempty,url" yaml:"prefetch_endpoint"`

	// RegisterEndpoint and UnregisterEndpoint receive worker pid lists.
	RegisterEndpoint   string `mapstructure:"register_endpoint"   validate:"omitempty,url" yaml:"register_endpoint"`
	UnregisterEndpoint string `mapstructure:"unregister_endpoint" validate:"omitempty,url" yaml:"unregister_endpoint"`

	// RequestTimeout bounds each notification POST.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0" yaml:"request_timeout"`
}

// CacheConfig configures the managed cache root and payload store.
type CacheConfig struct {
	// RootDir scopes cache-aware reads. Required in batch-download mode.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`

	// Store selects the payload store backend.
	Store string `mapstructure:"store" validate:"omitempty,oneof=memory badger fs" yaml:"store"`

	// BadgerDir is the database directory for the badger backend.
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir"`

	// TTL is the payload lifetime; expired entries are removed by the
	// maintenance timer (or natively by badger).
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0" yaml:"ttl"`

	// MaintenanceInterval is the period of the cache maintenance timer.
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" validate:"gte=0" yaml:"maintenance_interval"`
}

// DownloaderConfig selects the batch-download capability.
type DownloaderConfig struct {
	// UseBatchDownload enables actual payload prefetching; when false the
	// pipeline only notifies the storage tier.
	UseBatchDownload bool `mapstructure:"use_batch_download" yaml:"use_batch_download"`

	// Source selects where payloads are fetched from in batch-download mode.
	Source string `mapstructure:"source" validate:"omitempty,oneof=s3 http" yaml:"source"`

	// HTTPBaseURL is the read endpoint for the http source.
	HTTPBaseURL string `mapstructure:"http_base_url" validate:"omitempty,url" yaml:"http_base_url"`

	// S3 configures the s3 source.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// ParallelDownloads bounds concurrent payload fetches.
	ParallelDownloads int `mapstructure:"parallel_downloads" validate:"gte=0" yaml:"parallel_downloads"`

	// FetchTimeout bounds each payload fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gte=0" yaml:"fetch_timeout"`
}

// S3Config configures the S3 payload source.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// WorkersConfig configures the fetch loops.
type WorkersConfig struct {
	// Count is the number of worker loops.
	Count int `mapstructure:"count" validate:"gte=0" yaml:"count"`

	// BaseSeed seeds per-worker randomness (worker seed = base + id).
	BaseSeed int64 `mapstructure:"base_seed" yaml:"base_seed"`

	// QueueSize bounds each worker's prefetch queue.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0" yaml:"queue_size"`

	// PollInterval bounds the prefetch consumer's queue wait.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=0" yaml:"poll_interval"`

	// StatusCheckInterval bounds the worker loop's inbound wait.
	StatusCheckInterval time.Duration `mapstructure:"status_check_interval" validate:"gte=0" yaml:"status_check_interval"`
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddr is the debug HTTP listener serving /healthz and /metrics.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath empty means the default location
// ($XDG_CONFIG_HOME/cachewarm/config.yaml).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with user-friendly errors when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n"+
				"  cachewarm-worker init\n\n"+
				"Or specify a custom config file:\n"+
				"  cachewarm-worker <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the S3 section may carry credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file search.
// Example override: CACHEWARM_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CACHEWARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if present. A missing file is not an
// error; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks converts config-file strings into typed values.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook parses duration strings like "5s" or "2m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if v == "" {
				return time.Duration(0), nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return d, nil
		case int, int64, float64:
			return data, nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/cachewarm (or ~/.config/cachewarm).
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cachewarm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cachewarm")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
