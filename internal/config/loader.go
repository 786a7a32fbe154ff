package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller after Load.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PRESSGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pressgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pressgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToDateHook(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// ParseDate parses a YYYY-MM-DD date (or RFC3339 timestamp) as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t.UTC(), nil
}

// stringToDateHook lets date fields be written as plain YYYY-MM-DD in YAML.
func stringToDateHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Time{}) {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			return ParseDate(data.(string))
		default:
			return data, nil
		}
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scrape.default_start", cfg.Scrape.DefaultStart.Format(time.DateOnly))
	v.SetDefault("scrape.max_pages", cfg.Scrape.MaxPages)
	v.SetDefault("scrape.sites_file", cfg.Scrape.SitesFile)
	v.SetDefault("scrape.politeness_delay", cfg.Scrape.PolitenessDelay)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)
	v.SetDefault("fetcher.browser_bin", cfg.Fetcher.BrowserBin)

	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.corpus_file", cfg.Storage.CorpusFile)

	v.SetDefault("mongo.enabled", cfg.Mongo.Enabled)
	v.SetDefault("mongo.uri", cfg.Mongo.URI)
	v.SetDefault("mongo.database", cfg.Mongo.Database)
	v.SetDefault("mongo.collection", cfg.Mongo.Collection)

	v.SetDefault("runlog.enabled", cfg.RunLog.Enabled)
	v.SetDefault("runlog.path", cfg.RunLog.Path)

	v.SetDefault("kafka.enabled", cfg.Kafka.Enabled)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.topic", cfg.Kafka.Topic)

	v.SetDefault("schedule.cron", cfg.Schedule.Cron)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
