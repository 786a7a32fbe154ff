package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scrape.DefaultStart.IsZero() {
		return fmt.Errorf("scrape.default_start must be set")
	}
	if cfg.Scrape.MaxPages < 0 {
		return fmt.Errorf("scrape.max_pages must be >= 0, got %d", cfg.Scrape.MaxPages)
	}
	if cfg.Scrape.PolitenessDelay < 0 {
		return fmt.Errorf("scrape.politeness_delay must be >= 0")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}

	if cfg.Mongo.Enabled {
		if cfg.Mongo.URI == "" || cfg.Mongo.Database == "" || cfg.Mongo.Collection == "" {
			return fmt.Errorf("mongo.uri, mongo.database and mongo.collection are required when mongo is enabled")
		}
	}
	if cfg.RunLog.Enabled && cfg.RunLog.Path == "" {
		return fmt.Errorf("runlog.path must be set when the run log is enabled")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must not be empty when kafka is enabled")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic must be set when kafka is enabled")
		}
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q is invalid: %w", cfg.Schedule.Cron, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}
