// Package engine walks a newsroom listing in reverse-chronological order and
// turns every in-window entry into an Article. One routine serves every site;
// the differences between newsrooms live in their sites.Site records.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/fetcher"
	"github.com/IshaanNene/pressgoat/internal/observability"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// State is the walker's position in a listing walk.
type State int32

const (
	StateListing State = 0
	StateEntries State = 1
	StateDone    State = 2
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StateEntries:
		return "entries"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StopReason names the terminal condition that ended a walk.
type StopReason int

const (
	StopNone StopReason = iota
	// StopCutoff: an entry older than the window start was reached.
	StopCutoff
	// StopEmptyPage: a listing page matched no entries.
	StopEmptyPage
	// StopNoNext: the site's next-page indicator was absent.
	StopNoNext
	// StopExhausted: the calendar walk passed the window start, or the
	// single feed document was consumed.
	StopExhausted
	// StopMaxPages: the configured page bound was hit.
	StopMaxPages
	// StopRepeated: a listing page linked the same entries as the page
	// before it, as sites that clamp out-of-range page numbers do.
	StopRepeated
)

func (r StopReason) String() string {
	switch r {
	case StopCutoff:
		return "cutoff"
	case StopEmptyPage:
		return "empty_page"
	case StopNoNext:
		return "no_next"
	case StopExhausted:
		return "exhausted"
	case StopMaxPages:
		return "max_pages"
	case StopRepeated:
		return "repeated_page"
	default:
		return "none"
	}
}

// Result is the outcome of one walk.
type Result struct {
	Articles types.Table
	Stop     StopReason
	Pages    int
	Requests int
	Dropped  int
}

// Scraper runs listing walks. It is not safe for concurrent use.
type Scraper struct {
	fetcher fetcher.Fetcher
	cfg     config.ScrapeConfig
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
	state   atomic.Int32
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithMetrics records requests and articles on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithClock overrides the clock used for {days_back}.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// New creates a Scraper over the given fetcher.
func New(f fetcher.Fetcher, cfg config.ScrapeConfig, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher: f,
		cfg:     cfg,
		logger:  logger.With("component", "scraper"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateDone))
	return s
}

// State returns the current walk state.
func (s *Scraper) State() State {
	return State(s.state.Load())
}

// Scrape walks site's listing and returns every article dated inside w,
// newest first. A failing listing page aborts the walk with an error; a
// failing article page only drops that article.
func (s *Scraper) Scrape(ctx context.Context, site *sites.Site, w types.Window) (*Result, error) {
	if !w.Valid() {
		return &Result{}, fmt.Errorf("%w: %s", types.ErrInvalidWindow, w)
	}

	wk := &walk{
		Scraper: s,
		site:    site,
		window:  w,
		now:     s.now(),
		log:     s.logger.With("province", site.Name),
		res:     &Result{},
	}
	defer s.state.Store(int32(StateDone))

	err := wk.run(ctx)
	wk.log.Debug("walk finished",
		"window", w.String(),
		"articles", len(wk.res.Articles),
		"pages", wk.res.Pages,
		"dropped", wk.res.Dropped,
		"stop", wk.res.Stop.String(),
	)
	return wk.res, err
}

// walk is the state of one Scrape call.
type walk struct {
	*Scraper
	site   *sites.Site
	window types.Window
	now    time.Time
	log    *slog.Logger
	res    *Result
}

func (w *walk) run(ctx context.Context) error {
	site := w.site
	period := site.FirstPeriod(w.window.Start, w.window.End)
	var previous map[string]struct{}

	w.state.Store(int32(StateListing))
	for w.State() != StateDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.cfg.MaxPages > 0 && w.res.Pages >= w.cfg.MaxPages {
			w.finish(StopMaxPages)
			continue
		}

		pageURL := site.PageURL(period, w.window.Start, w.window.End, w.now)
		page, err := w.listing(ctx, pageURL, period)
		if err != nil {
			return err
		}
		w.res.Pages++
		w.log.Debug("listing page", "url", pageURL, "matched", page.matched, "entries", len(page.entries))

		w.state.Store(int32(StateEntries))
		if page.matched == 0 && !site.Calendar() {
			w.finish(StopEmptyPage)
			continue
		}
		links := page.links()
		if len(links) > 0 && sameLinks(links, previous) {
			w.log.Debug("listing page repeats the previous one", "url", pageURL)
			w.finish(StopRepeated)
			continue
		}
		previous = links

		cutoff, err := w.consume(ctx, page.entries)
		if err != nil {
			return err
		}
		switch {
		case cutoff:
			w.finish(StopCutoff)
		case site.Pagination.Style == sites.StyleFeed:
			w.finish(StopExhausted)
		case site.Pagination.Next != "" && !page.hasNext:
			w.finish(StopNoNext)
		default:
			next, ok := site.NextPeriod(period, w.window.Start)
			if !ok {
				w.finish(StopExhausted)
				continue
			}
			period = next
			w.state.Store(int32(StateListing))
		}
	}
	return nil
}

// finish records why the walk ended and moves it to StateDone.
func (w *walk) finish(reason StopReason) {
	w.res.Stop = reason
	w.state.Store(int32(StateDone))
}

func sameLinks(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for link := range a {
		if _, ok := b[link]; !ok {
			return false
		}
	}
	return true
}

// consume turns entries into articles. cutoff is true once an entry older
// than the window start is seen.
func (w *walk) consume(ctx context.Context, entries []entry) (cutoff bool, err error) {
	for _, e := range entries {
		if e.dated {
			if e.date.Before(w.window.Start) {
				return true, nil
			}
			if e.date.After(w.window.End) {
				continue
			}
		}

		art, err := w.article(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			w.drop("detail", "article dropped", "url", e.link, "error", err)
			continue
		}

		if !e.dated {
			if art.StartDate.Before(w.window.Start) {
				return true, nil
			}
			if art.StartDate.After(w.window.End) {
				continue
			}
		}

		w.res.Articles = append(w.res.Articles, art)
		w.metrics.Scraped(w.site.Name)
	}
	return false, nil
}

// get fetches one page, sleeping the politeness delay between requests.
func (w *walk) get(ctx context.Context, rawURL, tag string) (*types.Response, error) {
	if w.res.Requests > 0 && w.cfg.PolitenessDelay > 0 {
		t := time.NewTimer(fetcher.RandomDelay(w.cfg.PolitenessDelay))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	w.res.Requests++

	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Tag = tag
	req.Render = w.site.Render

	resp, err := w.fetcher.Fetch(ctx, req)
	w.metrics.Request(w.site.Name, tag, err)
	return resp, err
}

func (w *walk) drop(reason, msg string, args ...any) {
	w.res.Dropped++
	w.metrics.Dropped(w.site.Name, reason)
	w.log.Warn(msg, args...)
}
