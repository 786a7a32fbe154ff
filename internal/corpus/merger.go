package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/pressgoat/internal/observability"
	"github.com/IshaanNene/pressgoat/internal/pipeline"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/storage"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// LoadOptions describe one load call.
type LoadOptions struct {
	// Start is the earliest date wanted; nil means the default start.
	Start *time.Time
	// End is the latest date wanted; zero means now.
	End time.Time
	// Persist overwrites the province cache with the merged table.
	Persist bool
	// Verbose raises progress logging from debug to info.
	Verbose bool
}

// Recorder stores the outcome of a load.
type Recorder interface {
	Record(ctx context.Context, r storage.Run) (string, error)
}

// Publisher receives articles that were not in the cache before a load.
type Publisher interface {
	Publish(ctx context.Context, province string, t types.Table) error
}

// Merger extends the per-province caches with fresh fetches.
type Merger struct {
	dispatcher   *Dispatcher
	store        storage.TableStore
	normalizer   *pipeline.Pipeline
	defaultStart time.Time
	recorder     Recorder
	publisher    Publisher
	metrics      *observability.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithRecorder records every load.
func WithRecorder(r Recorder) MergerOption {
	return func(m *Merger) { m.recorder = r }
}

// WithPublisher publishes the new rows of every load.
func WithPublisher(p Publisher) MergerOption {
	return func(m *Merger) { m.publisher = p }
}

// WithMetrics records merge outcomes.
func WithMetrics(metrics *observability.Metrics) MergerOption {
	return func(m *Merger) { m.metrics = metrics }
}

// WithClock overrides the clock used for a zero End.
func WithClock(now func() time.Time) MergerOption {
	return func(m *Merger) { m.now = now }
}

// NewMerger creates a Merger.
func NewMerger(d *Dispatcher, store storage.TableStore, defaultStart time.Time, logger *slog.Logger, opts ...MergerOption) *Merger {
	m := &Merger{
		dispatcher:   d,
		store:        store,
		normalizer:   pipeline.Normalizer(logger),
		defaultStart: defaultStart,
		logger:       logger.With("component", "merger"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provinces returns the known province names in enumeration order.
func (m *Merger) Provinces() []string {
	return m.dispatcher.catalog.Names()
}

// window resolves the effective window of a load.
func (m *Merger) window(opts LoadOptions) types.Window {
	w := types.Window{Start: m.defaultStart, End: opts.End}
	if opts.Start != nil {
		w.Start = *opts.Start
	}
	if w.End.IsZero() {
		w.End = m.now().UTC()
	}
	return w
}

// LoadProvince returns the cached table of a province extended to cover the
// requested window. Unknown names return types.ErrUnknownProvince. An
// inverted window returns an empty table, fetches nothing and persists
// nothing. A persist failure is returned alongside the merged table.
func (m *Merger) LoadProvince(ctx context.Context, name string, opts LoadOptions) (types.Table, error) {
	site, ok := m.dispatcher.catalog.Lookup(name)
	if !ok {
		m.logger.Warn("unknown province", "name", name)
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownProvince, name)
	}

	w := m.window(opts)
	log := m.logger.With("province", site.Name)
	if !w.Valid() {
		log.Warn("rejected window", "window", w.String())
		return types.Table{}, nil
	}

	began := m.now()
	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}

	var (
		fetchErrs         []error
		forward, backward types.Table
	)
	fetch := func(fw types.Window) types.Table {
		t, err := m.dispatcher.fetch(ctx, site, fw, opts.Verbose)
		if err != nil {
			fetchErrs = append(fetchErrs, err)
		}
		return t
	}

	cached, err := m.store.Read(site.Name)
	if err == nil && len(cached) == 0 {
		err = types.ErrNoCache
	}
	if err == nil {
		err = m.checkCache(site, cached)
	}
	if err != nil {
		if errors.Is(err, types.ErrNoCache) {
			log.Log(ctx, level, "no cache, fetching full window", "window", w.String())
		} else {
			log.Warn("cache unreadable, fetching full window", "window", w.String(), "error", err)
		}
		cached = nil
		forward = fetch(w)
	} else {
		largest, _ := cached.MaxDate()
		smallest, _ := cached.MinDate()

		fw := types.Window{Start: later(largest, w.Start), End: w.End}
		forward = fetch(fw)

		if opts.Start != nil && opts.Start.Before(smallest) {
			bw := types.Window{Start: *opts.Start, End: earlier(w.End, smallest)}
			backward = fetch(bw)
		}
	}

	before := len(cached)
	merged, err := m.merge(forward, cached, backward)
	if err != nil {
		return types.Table{}, err
	}
	added := len(merged) - before
	log.Log(ctx, level, "merged",
		"added", added,
		"total", len(merged),
		"fetched", len(forward)+len(backward),
	)

	var persistErr error
	if opts.Persist {
		if persistErr = m.store.Write(site.Name, merged); persistErr != nil {
			log.Error("persist failed", "error", persistErr)
		}
	}

	if m.publisher != nil {
		if fresh := newRows(merged, cached.Texts()); len(fresh) > 0 {
			if err := m.publisher.Publish(ctx, site.Name, fresh); err != nil {
				m.metrics.PublishFailed()
				log.Warn("publish failed", "articles", len(fresh), "error", err)
			}
		}
	}

	m.metrics.Merged(site.Name, added, len(merged), m.now().Sub(began))
	m.record(ctx, storage.Run{
		Province:   site.Name,
		Window:     w,
		StartedAt:  began,
		FinishedAt: m.now(),
		Fetched:    len(forward) + len(backward),
		Added:      added,
		Total:      len(merged),
		Error:      errText(errors.Join(append(fetchErrs, persistErr)...)),
	})

	return merged, persistErr
}

// merge normalizes the three segments and deduplicates them by text.
func (m *Merger) merge(forward, cached, backward types.Table) (types.Table, error) {
	segs := []segment{{rows: forward, fresh: true}, {rows: cached}, {rows: backward, fresh: true}}
	for i := range segs {
		rows, _, err := m.normalizer.Run(segs[i].rows)
		if err != nil {
			return nil, err
		}
		segs[i].rows = rows
	}
	return dedupByText(segs...), nil
}

// checkCache rejects a cached table holding rows of another province.
func (m *Merger) checkCache(site *sites.Site, cached types.Table) error {
	p := pipeline.New(m.logger)
	p.Use(&pipeline.RegionMiddleware{Region: site.Region})
	if _, _, err := p.Run(cached); err != nil {
		return &types.StorageError{Backend: "cache", Err: err}
	}
	return nil
}

func (m *Merger) record(ctx context.Context, r storage.Run) {
	if m.recorder == nil {
		return
	}
	if _, err := m.recorder.Record(ctx, r); err != nil {
		m.logger.Warn("run not recorded", "province", r.Province, "error", err)
	}
}

// LoadAll loads every province in enumeration order and concatenates the
// tables. A province that fails contributes whatever its cache held or
// nothing. Only cancellation stops the loop early.
func (m *Merger) LoadAll(ctx context.Context, opts LoadOptions) (types.Table, error) {
	var corpus types.Table
	for _, name := range m.Provinces() {
		if err := ctx.Err(); err != nil {
			return corpus, err
		}
		t, err := m.LoadProvince(ctx, name, opts)
		if err != nil {
			m.logger.Warn("province load incomplete", "province", name, "error", err)
		}
		corpus = append(corpus, t...)
	}
	if corpus == nil {
		corpus = types.Table{}
	}
	return corpus, nil
}

// LoadEach loads the named provinces, or all of them when names is empty,
// and returns one table per name. Unknown names map to nil.
func (m *Merger) LoadEach(ctx context.Context, names []string, opts LoadOptions) (map[string]types.Table, error) {
	if len(names) == 0 {
		names = m.Provinces()
	}
	out := make(map[string]types.Table, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		t, err := m.LoadProvince(ctx, name, opts)
		if err != nil && !errors.Is(err, types.ErrUnknownProvince) {
			m.logger.Warn("province load incomplete", "province", name, "error", err)
		}
		out[name] = t
	}
	return out, nil
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
