// Package pressgoat is the public API for loading the provincial press
// release corpus from Go programs.
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	client, err := pressgoat.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
//	table, err := client.LoadProvince(ctx, "nova scotia", pressgoat.LoadOptions{Start: &start})
package pressgoat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/corpus"
	"github.com/IshaanNene/pressgoat/internal/engine"
	"github.com/IshaanNene/pressgoat/internal/fetcher"
	"github.com/IshaanNene/pressgoat/internal/observability"
	"github.com/IshaanNene/pressgoat/internal/publish"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/storage"
	"github.com/IshaanNene/pressgoat/internal/types"
)

type (
	// Article is one press release.
	Article = types.Article
	// Table is an ordered set of press releases.
	Table = types.Table
	// Window is an inclusive date range.
	Window = types.Window
	// LoadOptions describe one load call.
	LoadOptions = corpus.LoadOptions
	// Run is one recorded load.
	Run = storage.Run
)

// ErrUnknownProvince is returned for names outside the catalog.
var ErrUnknownProvince = types.ErrUnknownProvince

// Client loads provinces through the incremental cache.
type Client struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *sites.Catalog
	dispatcher *corpus.Dispatcher
	merger     *corpus.Merger
	store      *storage.CSVTableStore
	runlog     *storage.RunLog
	metrics    *observability.Metrics
	closers    []io.Closer

	scraper corpus.Scraper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records fetch and merge metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithScraper replaces the network scraper.
func WithScraper(s corpus.Scraper) Option {
	return func(c *Client) { c.scraper = s }
}

// Open validates cfg and wires the fetch, cache, run log and publish layers.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if cfg.Scrape.SitesFile != "" {
		c.catalog, err = sites.LoadFile(cfg.Scrape.SitesFile)
	} else {
		c.catalog, err = sites.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load site catalog: %w", err)
	}

	if c.scraper == nil {
		router, err := fetcher.NewRouter(&cfg.Fetcher, c.logger)
		if err != nil {
			return nil, fmt.Errorf("create fetcher: %w", err)
		}
		c.closers = append(c.closers, router)
		c.scraper = engine.New(router, cfg.Scrape, c.logger, engine.WithMetrics(c.metrics))
	}

	c.store = storage.NewCSVTableStore(cfg.Storage.DataDir)
	c.dispatcher = corpus.NewDispatcher(c.catalog, c.scraper, c.metrics, c.logger)

	mopts := []corpus.MergerOption{corpus.WithMetrics(c.metrics)}
	if cfg.RunLog.Enabled {
		c.runlog, err = storage.OpenRunLog(cfg.RunLog.Path)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, c.runlog)
		mopts = append(mopts, corpus.WithRecorder(c.runlog))
	}
	if cfg.Kafka.Enabled {
		pub, err := publish.NewKafkaPublisher(cfg.Kafka, c.logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, pub)
		mopts = append(mopts, corpus.WithPublisher(pub))
	}

	c.merger = corpus.NewMerger(c.dispatcher, c.store, cfg.Scrape.DefaultStart, c.logger, mopts...)
	return c, nil
}

// Provinces returns the province names in enumeration order.
func (c *Client) Provinces() []string {
	return c.catalog.Names()
}

// Site returns the catalog record of a province.
func (c *Client) Site(name string) (*sites.Site, bool) {
	return c.catalog.Lookup(name)
}

// FetchProvince fetches a province over w, bypassing the cache.
func (c *Client) FetchProvince(ctx context.Context, name string, w Window, verbose bool) (Table, error) {
	return c.dispatcher.FetchProvince(ctx, name, w, verbose)
}

// LoadProvince returns the cached table of a province extended to opts.
func (c *Client) LoadProvince(ctx context.Context, name string, opts LoadOptions) (Table, error) {
	return c.merger.LoadProvince(ctx, name, opts)
}

// LoadEach loads the named provinces, or all of them when names is empty.
func (c *Client) LoadEach(ctx context.Context, names []string, opts LoadOptions) (map[string]Table, error) {
	return c.merger.LoadEach(ctx, names, opts)
}

// LoadAll loads every province and concatenates them.
func (c *Client) LoadAll(ctx context.Context, opts LoadOptions) (Table, error) {
	return c.merger.LoadAll(ctx, opts)
}

// Cached reads the cache of a province without fetching.
func (c *Client) Cached(name string) (Table, error) {
	site, ok := c.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvince, name)
	}
	return c.store.Read(site.Name)
}

// CachePath returns the cache file of a province.
func (c *Client) CachePath(name string) string {
	return c.store.Path(name)
}

// Runs returns recent runs, newest first. An empty province means all.
func (c *Client) Runs(ctx context.Context, province string, limit int) ([]Run, error) {
	if c.runlog == nil {
		return nil, errors.New("run log disabled")
	}
	return c.runlog.Recent(ctx, province, limit)
}

// LatestRuns returns the latest run of every province that has one.
func (c *Client) LatestRuns(ctx context.Context) ([]Run, error) {
	if c.runlog == nil {
		return nil, errors.New("run log disabled")
	}
	return c.runlog.Latest(ctx)
}

// Export writes t to a file in format, and to MongoDB when enabled.
func (c *Client) Export(ctx context.Context, t Table, format, path string) error {
	file, err := storage.NewFileSink(format, path, c.logger)
	if err != nil {
		return err
	}
	sinks := []storage.Sink{file}
	if c.cfg.Mongo.Enabled {
		m, err := storage.NewMongoSink(ctx, c.cfg.Mongo.URI, c.cfg.Mongo.Database, c.cfg.Mongo.Collection, c.logger)
		if err != nil {
			file.Close()
			return err
		}
		sinks = append(sinks, m)
	}

	sink := storage.NewMultiSink(sinks, c.logger)
	if err := sink.Store(ctx, t); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

// Close releases the fetcher, run log and publisher.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
