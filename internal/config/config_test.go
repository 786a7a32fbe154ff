package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pressgoat.yaml")
	body := `
scrape:
  default_start: 2021-03-15
  max_pages: 40
  politeness_delay: 250ms
storage:
  data_dir: /tmp/press
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC)
	if !cfg.Scrape.DefaultStart.Equal(want) {
		t.Errorf("default_start = %s, want %s", cfg.Scrape.DefaultStart, want)
	}
	if cfg.Scrape.MaxPages != 40 {
		t.Errorf("max_pages = %d", cfg.Scrape.MaxPages)
	}
	if cfg.Scrape.PolitenessDelay != 250*time.Millisecond {
		t.Errorf("politeness_delay = %s", cfg.Scrape.PolitenessDelay)
	}
	if cfg.Storage.DataDir != "/tmp/press" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "press-releases" {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Fetcher.RequestTimeout != 30*time.Second {
		t.Errorf("unset values should keep defaults, got timeout %s", cfg.Fetcher.RequestTimeout)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max pages", func(c *Config) { c.Scrape.MaxPages = -1 }},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every tuesday" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }},
		{"mongo without uri", func(c *Config) { c.Mongo.Enabled = true; c.Mongo.URI = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2020-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("got %s", got)
	}
	if _, err := ParseDate("March 2"); err == nil {
		t.Error("expected error for free-form date")
	}
}
