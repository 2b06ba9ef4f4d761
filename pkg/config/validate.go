package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and cross-field errors.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Cross-field rules the struct tags cannot express.
	if cfg.Downloader.UseBatchDownload {
		if cfg.Cache.RootDir == "" {
			return fmt.Errorf("cache.root_dir is required when downloader.use_batch_download is set")
		}
		switch cfg.Downloader.Source {
		case "s3":
			if cfg.Downloader.S3.Bucket == "" {
				return fmt.Errorf("downloader.s3.bucket is required for the s3 source")
			}
		case "http":
			if cfg.Downloader.HTTPBaseURL == "" {
				return fmt.Errorf("downloader.http_base_url is required for the http source")
			}
		}
	}

	if cfg.Cache.Store == "badger" && cfg.Cache.BadgerDir == "" {
		return fmt.Errorf("cache.badger_dir is required for the badger store")
	}
	if cfg.Cache.Store == "fs" && cfg.Cache.RootDir == "" {
		return fmt.Errorf("cache.root_dir is required for the fs store")
	}

	return nil
}
