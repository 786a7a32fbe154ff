package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for pressgoat.
type Config struct {
	Scrape   ScrapeConfig   `mapstructure:"scrape"   yaml:"scrape"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Mongo    MongoConfig    `mapstructure:"mongo"    yaml:"mongo"`
	RunLog   RunLogConfig   `mapstructure:"runlog"   yaml:"runlog"`
	Kafka    KafkaConfig    `mapstructure:"kafka"    yaml:"kafka"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// ScrapeConfig controls the listing walk and the default window.
type ScrapeConfig struct {
	// DefaultStart is the earliest date fetched when no start is given.
	DefaultStart time.Time `mapstructure:"default_start" yaml:"default_start"`
	// MaxPages bounds listing pages per fetch; 0 means unbounded.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// SitesFile overrides the embedded site catalog.
	SitesFile string `mapstructure:"sites_file" yaml:"sites_file"`
	// PolitenessDelay is slept between consecutive requests.
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	// Stealth applies go-rod/stealth patches to browser pages.
	Stealth bool `mapstructure:"stealth" yaml:"stealth"`
	// BrowserBin points at a Chromium binary; empty lets rod download one.
	BrowserBin string `mapstructure:"browser_bin" yaml:"browser_bin"`
}

// StorageConfig controls the per-province cache files.
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"    yaml:"data_dir"`
	CorpusFile string `mapstructure:"corpus_file" yaml:"corpus_file"`
}

// MongoConfig controls the optional corpus export to MongoDB.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// RunLogConfig controls the SQLite run history.
type RunLogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// KafkaConfig controls publishing of newly merged articles.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic"   yaml:"topic"`
}

// ScheduleConfig controls the recurring refresh.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" yaml:"cron"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultStart is the first day of the collection period.
var DefaultStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			DefaultStart: DefaultStart,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Storage: StorageConfig{
			DataDir:    "sources",
			CorpusFile: "corpus.csv",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "pressgoat",
			Collection: "articles",
		},
		RunLog: RunLogConfig{
			Enabled: true,
			Path:    "sources/runs.db",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "press-releases",
		},
		Schedule: ScheduleConfig{
			Cron: "0 6 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
