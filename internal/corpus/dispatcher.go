// Package corpus maps province names to fetches, merges fresh rows into the
// per-province caches and aggregates the provinces into one corpus.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/IshaanNene/pressgoat/internal/engine"
	"github.com/IshaanNene/pressgoat/internal/observability"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// Scraper walks one site over a window.
type Scraper interface {
	Scrape(ctx context.Context, site *sites.Site, w types.Window) (*engine.Result, error)
}

// Dispatcher resolves province names and contains fetch failures: whatever
// goes wrong inside a fetch, the caller receives an empty table.
type Dispatcher struct {
	catalog *sites.Catalog
	scraper Scraper
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(catalog *sites.Catalog, scraper Scraper, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		catalog: catalog,
		scraper: scraper,
		metrics: metrics,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Catalog returns the site catalog the dispatcher resolves names against.
func (d *Dispatcher) Catalog() *sites.Catalog {
	return d.catalog
}

// FetchProvince fetches one province over w without touching its cache.
// An unknown name logs a warning and returns a nil table with
// types.ErrUnknownProvince. An inverted window returns an empty table
// without any request. Fetch failures return an empty table and nil error.
func (d *Dispatcher) FetchProvince(ctx context.Context, name string, w types.Window, verbose bool) (types.Table, error) {
	site, ok := d.catalog.Lookup(name)
	if !ok {
		d.logger.Warn("unknown province", "name", name)
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownProvince, name)
	}
	if !w.Valid() {
		d.logger.Warn("rejected window", "province", site.Name, "window", w.String())
		return types.Table{}, nil
	}

	t, err := d.fetch(ctx, site, w, verbose)
	if err != nil {
		return types.Table{}, nil
	}
	return t, nil
}

// fetch runs the scraper and converts errors and panics into an empty
// table. The error is returned for bookkeeping only.
func (d *Dispatcher) fetch(ctx context.Context, site *sites.Site, w types.Window, verbose bool) (t types.Table, err error) {
	log := d.logger.With("province", site.Name)
	if !w.Valid() {
		return types.Table{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic fetching %s: %v", site.Name, r)
			log.Error("fetch panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			d.metrics.ProvinceFailed(site.Name)
			t = types.Table{}
		}
	}()

	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}
	log.Log(ctx, level, "fetching", "window", w.String())

	res, err := d.scraper.Scrape(ctx, site, w)
	if err != nil {
		log.Warn("province fetch failed", "window", w.String(), "error", err)
		return nil, err
	}
	log.Log(ctx, level, "fetched", "articles", len(res.Articles), "stop", res.Stop.String())
	if res.Articles == nil {
		return types.Table{}, nil
	}
	return res.Articles, nil
}
