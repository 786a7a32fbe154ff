package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/parser"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// stubFetcher serves canned pages and records every requested URL.
type stubFetcher struct {
	pages     map[string]string
	requested []string
}

func (f *stubFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	u := req.URLString()
	f.requested = append(f.requested, u)
	body, ok := f.pages[u]
	if !ok {
		return nil, &types.FetchError{URL: u, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
	}
	return types.NewBrowserResponse(req, http.StatusOK, []byte(body), u, 0), nil
}

func (f *stubFetcher) Close() error { return nil }
func (f *stubFetcher) Type() string { return "stub" }

// clampingFetcher answers every URL under prefix with the same listing.
type clampingFetcher struct {
	stubFetcher
	prefix  string
	listing string
}

func (f *clampingFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if u := req.URLString(); strings.HasPrefix(u, f.prefix) {
		f.requested = append(f.requested, u)
		return types.NewBrowserResponse(req, http.StatusOK, []byte(f.listing), u, 0), nil
	}
	return f.stubFetcher.Fetch(ctx, req)
}

func (f *stubFetcher) saw(u string) bool {
	for _, r := range f.requested {
		if r == u {
			return true
		}
	}
	return false
}

func day(d int) time.Time {
	return time.Date(2021, time.March, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(d int) time.Time {
	return day(d).Add(24*time.Hour - time.Second)
}

func detailPage(text string) string {
	return `<html><body><div class="body"><p>` + text + `</p></div></body></html>`
}

func listPage(entries ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="news">`)
	for _, e := range entries {
		b.WriteString(e)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func li(date, href, title string) string {
	return `<li><span class="date">` + date + `</span><a href="` + href + `">` + title + `</a></li>`
}

func pagedSite() *sites.Site {
	return &sites.Site{
		Name:   "testland",
		Region: "Testland",
		Query:  parser.CSS,
		Render: sites.RenderHTTP,
		Pagination: sites.Pagination{
			Style: sites.StylePage,
			URL:   "https://news.test/list?page={page}",
			First: 1,
			Step:  1,
		},
		Listing: sites.Listing{
			Items:       "ul.news li",
			Date:        sites.Field{Selector: "span.date"},
			DateLayouts: []string{"January 2, 2006"},
			Title:       sites.Field{Selector: "a"},
			Link:        sites.Field{Selector: "a", Attr: "href"},
		},
		Detail: sites.Detail{Body: sites.Field{Selector: "div.body"}},
	}
}

func newScraper(f *stubFetcher, cfg config.ScrapeConfig) *Scraper {
	return New(f, cfg, testLogger)
}

func TestScrapeDateCutoff(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://news.test/list?page=1": listPage(
			li("March 5, 2021", "/a", "Five"),
			li("March 3, 2021", "/b", "Three"),
			li("March 1, 2021", "/c", "One"),
		),
		"https://news.test/list?page=2": listPage(li("February 20, 2021", "/d", "Old")),
		"https://news.test/a":           detailPage("five"),
		"https://news.test/b":           detailPage("three"),
		"https://news.test/c":           detailPage("one"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(2), End: endOfDay(10)})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if len(res.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(res.Articles))
	}
	if res.Articles[0].SourceFullText != "five" || res.Articles[1].SourceFullText != "three" {
		t.Errorf("unexpected order: %+v", res.Articles)
	}
	if res.Stop != StopCutoff {
		t.Errorf("stop = %s, want cutoff", res.Stop)
	}
	if f.saw("https://news.test/list?page=2") {
		t.Error("fetched a second listing page after the cutoff")
	}
	if f.saw("https://news.test/c") {
		t.Error("fetched the detail page of an out-of-window entry")
	}

	a := res.Articles[0]
	if a.Country != types.Country || a.Region != "Testland" || a.SourceCategory != types.SourceCategory {
		t.Errorf("constant columns wrong: %+v", a)
	}
	if a.SourceURL != "https://news.test/a" || a.SourceTitle != "Five" {
		t.Errorf("url/title wrong: %+v", a)
	}
	if !a.StartDate.Equal(day(5)) {
		t.Errorf("date = %v", a.StartDate)
	}
}

func TestScrapeSkipsFutureAndStopsOnEmptyPage(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://news.test/list?page=1": listPage(
			li("March 12, 2021", "/future", "Future"),
			li("March 5, 2021", "/a", "Five"),
		),
		"https://news.test/list?page=2": listPage(),
		"https://news.test/a":           detailPage("five"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 1 || res.Articles[0].SourceTitle != "Five" {
		t.Fatalf("articles = %+v", res.Articles)
	}
	if res.Stop != StopEmptyPage {
		t.Errorf("stop = %s, want empty_page", res.Stop)
	}
	if f.saw("https://news.test/future") {
		t.Error("fetched the detail page of a future entry")
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d", res.Pages)
	}
}

func TestScrapeNextIndicator(t *testing.T) {
	site := pagedSite()
	site.Pagination.Next = "a.next"

	f := &stubFetcher{pages: map[string]string{
		"https://news.test/list?page=1": strings.Replace(listPage(li("March 5, 2021", "/a", "A")),
			"</ul>", `</ul><a class="next" href="?page=2">Next</a>`, 1),
		"https://news.test/list?page=2": listPage(li("March 4, 2021", "/b", "B")),
		"https://news.test/a":           detailPage("a"),
		"https://news.test/b":           detailPage("b"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), site,
		types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(res.Articles))
	}
	if res.Stop != StopNoNext {
		t.Errorf("stop = %s, want no_next", res.Stop)
	}
	if f.saw("https://news.test/list?page=3") {
		t.Error("walked past the last page")
	}
}

func TestScrapeDetailFailureDropsArticle(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://news.test/list?page=1": listPage(
			li("March 5, 2021", "/missing", "Gone"),
			li("March 4, 2021", "/nobody", "Empty"),
			li("March 3, 2021", "/b", "Kept"),
		),
		"https://news.test/list?page=2": listPage(),
		"https://news.test/nobody":      `<html><body><p>no body div</p></body></html>`,
		"https://news.test/b":           detailPage("kept"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 1 || res.Articles[0].SourceTitle != "Kept" {
		t.Fatalf("articles = %+v", res.Articles)
	}
	if res.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", res.Dropped)
	}
}

func TestScrapeListingFailure(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}}
	_, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(1), End: endOfDay(10)})
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestScrapeInvalidWindow(t *testing.T) {
	f := &stubFetcher{}
	_, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(5), End: day(1)})
	if !errors.Is(err, types.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
	if len(f.requested) != 0 {
		t.Errorf("made %d requests", len(f.requested))
	}
}

func TestScrapeMaxPages(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"https://news.test/list?page=1": listPage(li("March 5, 2021", "/a", "A")),
		"https://news.test/list?page=2": listPage(li("March 4, 2021", "/b", "B")),
		"https://news.test/a":           detailPage("a"),
		"https://news.test/b":           detailPage("b"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{MaxPages: 1}).Scrape(context.Background(), pagedSite(),
		types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stop != StopMaxPages || len(res.Articles) != 1 {
		t.Errorf("stop = %s, articles = %d", res.Stop, len(res.Articles))
	}
}

func TestScrapeXPathMultiLinkAndSkip(t *testing.T) {
	site := &sites.Site{
		Name:   "xland",
		Region: "Xland",
		Query:  parser.XPath,
		Render: sites.RenderHTTP,
		Pagination: sites.Pagination{
			Style: sites.StylePage,
			URL:   "https://x.test/news/?page={page}",
			First: 1,
			Step:  1,
		},
		Listing: sites.Listing{
			Items:       "//section[@class='day']",
			Date:        sites.Field{Selector: ".//time", Attr: "datetime"},
			DateLayouts: []string{"2006-01-02"},
			MultiLink:   true,
			Title:       sites.Field{Selector: ".//a"},
			Link:        sites.Field{Selector: ".//a", Attr: "href"},
			Skip:        &sites.Skip{Attr: "lang", Value: "fr"},
		},
		Detail: sites.Detail{Body: sites.Field{Selector: "//div[@id='releaseBody']"}},
	}

	listing := `<html><body>
<section class="day"><time datetime="2021-03-05T09:30:00-05:00">5 Mar</time>
  <a href="../release/?id=1#top">First</a><a href="../release/?id=2">Second</a></section>
<section class="day" lang="fr"><time datetime="2021-03-05">5 mars</time><a href="../release/?id=3">Premier</a></section>
<section class="day"><time datetime="2021-02-27">27 Feb</time><a href="../release/?id=4">Old</a></section>
</body></html>`
	release := func(s string) string { return `<html><body><div id="releaseBody">` + s + `</div></body></html>` }

	f := &stubFetcher{pages: map[string]string{
		"https://x.test/news/?page=1":  listing,
		"https://x.test/release/?id=1": release("one"),
		"https://x.test/release/?id=2": release("two"),
		"https://x.test/release/?id=3": release("trois"),
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), site,
		types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %+v", res.Articles)
	}
	if res.Articles[0].SourceURL != "https://x.test/release/?id=1" || res.Articles[1].SourceTitle != "Second" {
		t.Errorf("articles = %+v", res.Articles)
	}
	if want := time.Date(2021, 3, 5, 9, 30, 0, 0, time.UTC); !res.Articles[0].StartDate.Equal(want) {
		t.Errorf("date = %v, want wall clock %v", res.Articles[0].StartDate, want)
	}
	if f.saw("https://x.test/release/?id=3") {
		t.Error("fetched a skipped French entry")
	}
	if res.Stop != StopCutoff {
		t.Errorf("stop = %s", res.Stop)
	}
}

func TestScrapeMonthlyDateFromDetail(t *testing.T) {
	site := &sites.Site{
		Name:   "monthly",
		Region: "Monthly",
		Query:  parser.CSS,
		Render: sites.RenderHTTP,
		Pagination: sites.Pagination{
			Style: sites.StyleMonth,
			URL:   "https://m.test/news?month={month}&year={year}",
		},
		Listing: sites.Listing{
			Items:          "h2",
			Date:           sites.Field{Selector: "span.article_date"},
			DateLayouts:    []string{"January 2, 2006"},
			DateFromDetail: true,
			Title:          sites.Field{Selector: "a"},
			Link:           sites.Field{Selector: "a", Attr: "href"},
		},
		Detail: sites.Detail{Body: sites.Field{Selector: "div.body"}},
	}
	detail := func(date, text string) string {
		return `<html><body><span class="article_date">` + date + `</span><div class="body">` + text + `</div></body></html>`
	}

	f := &stubFetcher{pages: map[string]string{
		"https://m.test/news?month=3&year=2021": `<html><body><h2><a href="/r/3">March item</a></h2></body></html>`,
		"https://m.test/news?month=2&year=2021": `<html><body></body></html>`,
		"https://m.test/news?month=1&year=2021": `<html><body><h2><a href="/r/1">January item</a></h2></body></html>`,
		"https://m.test/r/3":                    detail("March 4, 2021", "march"),
		"https://m.test/r/1":                    detail("January 20, 2021", "january"),
	}}

	w := types.Window{
		Start: time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   endOfDay(10),
	}
	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), site, w)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %+v", res.Articles)
	}
	if !res.Articles[1].StartDate.Equal(time.Date(2021, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("detail date = %v", res.Articles[1].StartDate)
	}
	if res.Stop != StopExhausted {
		t.Errorf("stop = %s, want exhausted", res.Stop)
	}
	if f.saw("https://m.test/news?month=12&year=2020") {
		t.Error("walked past the start month")
	}
}

func TestScrapeFeed(t *testing.T) {
	site := &sites.Site{
		Name:   "feedland",
		Region: "Feedland",
		Query:  parser.CSS,
		Render: sites.RenderHTTP,
		Pagination: sites.Pagination{
			Style: sites.StyleFeed,
			URL:   "https://f.test/rss?days={days_back}",
		},
		Detail: sites.Detail{Body: sites.Field{Selector: "main"}},
	}
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>News</title>
<item><title>Older</title><link>https://f.test/n/1</link><pubDate>Mon, 01 Mar 2021 10:00:00 -0700</pubDate></item>
<item><title>Newer</title><link>https://f.test/n/2</link><pubDate>Fri, 05 Mar 2021 10:00:00 -0700</pubDate></item>
<item><title>Future</title><link>https://f.test/n/3</link><pubDate>Fri, 12 Mar 2021 10:00:00 -0700</pubDate></item>
</channel></rss>`
	page := func(s string) string { return `<html><body><main>` + s + `</main></body></html>` }

	f := &stubFetcher{pages: map[string]string{
		"https://f.test/rss?days=10": rss,
		"https://f.test/n/1":         page("older"),
		"https://f.test/n/2":         page("newer"),
	}}
	clock := func() time.Time { return time.Date(2021, 3, 11, 8, 0, 0, 0, time.UTC) }

	res, err := New(f, config.ScrapeConfig{}, testLogger, WithClock(clock)).Scrape(context.Background(), site,
		types.Window{Start: day(2), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 1 || res.Articles[0].SourceTitle != "Newer" {
		t.Fatalf("articles = %+v", res.Articles)
	}
	if want := time.Date(2021, 3, 5, 10, 0, 0, 0, time.UTC); !res.Articles[0].StartDate.Equal(want) {
		t.Errorf("date = %v, want %v", res.Articles[0].StartDate, want)
	}
	if res.Stop != StopCutoff {
		t.Errorf("stop = %s", res.Stop)
	}
}

func TestScrapeFeedKeepsWallClock(t *testing.T) {
	site := &sites.Site{
		Name:       "feedland",
		Region:     "Feedland",
		Query:      parser.CSS,
		Render:     sites.RenderHTTP,
		Pagination: sites.Pagination{Style: sites.StyleFeed, URL: "https://f.test/rss"},
		Detail:     sites.Detail{Body: sites.Field{Selector: "main"}},
	}
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>News</title>
<item><title>Evening</title><link>https://f.test/n/9</link><pubDate>Wed, 10 Mar 2021 20:00:00 -0700</pubDate></item>
</channel></rss>`
	f := &stubFetcher{pages: map[string]string{
		"https://f.test/rss": rss,
		"https://f.test/n/9": `<html><body><main>evening</main></body></html>`,
	}}

	res, err := newScraper(f, config.ScrapeConfig{}).Scrape(context.Background(), site,
		types.Window{Start: day(2), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("articles = %+v", res.Articles)
	}
	if want := time.Date(2021, 3, 10, 20, 0, 0, 0, time.UTC); !res.Articles[0].StartDate.Equal(want) {
		t.Errorf("date = %v, want %v", res.Articles[0].StartDate, want)
	}
}

func TestFeedDate(t *testing.T) {
	utc := time.Date(2021, 3, 11, 3, 0, 0, 0, time.UTC)
	tests := []struct {
		raw    string
		parsed *time.Time
		want   time.Time
		ok     bool
	}{
		{"Wed, 10 Mar 2021 20:00:00 -0700", &utc, time.Date(2021, 3, 10, 20, 0, 0, 0, time.UTC), true},
		{"Wed, 3 Mar 2021 09:15:00 -0700", nil, time.Date(2021, 3, 3, 9, 15, 0, 0, time.UTC), true},
		{"2021-03-10T20:00:00-07:00", nil, time.Date(2021, 3, 10, 20, 0, 0, 0, time.UTC), true},
		{"tenth of March", &utc, utc, true},
		{"", nil, time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := feedDate(tt.raw, tt.parsed)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("feedDate(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestScrapeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newScraper(&stubFetcher{}, config.ScrapeConfig{}).Scrape(ctx, pagedSite(),
		types.Window{Start: day(1), End: day(2)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw     string
		layouts []string
		strip   []string
		year    int
		want    time.Time
	}{
		{"  March 5, 2021\n 3:04 p.m. ", []string{"January 2, 2006 3:04 pm"}, []string{"."}, 0,
			time.Date(2021, 3, 5, 15, 4, 0, 0, time.UTC)},
		{"January 7", []string{"January 2"}, nil, 2020,
			time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC)},
		{"Friday, March 5, 2021 9:15 AM", []string{"Monday, January 2, 2006 3:04 PM"}, nil, 0,
			time.Date(2021, 3, 5, 9, 15, 0, 0, time.UTC)},
		{"2021-03-05T09:00:00-06:00", []string{"2006-01-02"}, nil, 0,
			time.Date(2021, 3, 5, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.raw, tt.layouts, tt.strip, tt.year)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := ParseDate("not a date", []string{"2006-01-02"}, nil, 0); err == nil {
		t.Error("expected error for garbage date")
	}
}

func TestScrapeStopsOnRepeatedPage(t *testing.T) {
	// every page number past the last serves the last page again
	f := &clampingFetcher{
		stubFetcher: stubFetcher{pages: map[string]string{
			"https://news.test/a": detailPage("a"),
			"https://news.test/b": detailPage("b"),
		}},
		prefix:  "https://news.test/list?page=",
		listing: listPage(li("March 5, 2021", "/a", "A"), li("March 4, 2021", "/b", "B")),
	}
	s := New(f, config.DefaultConfig().Scrape, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Scrape(ctx, pagedSite(), types.Window{Start: day(1), End: endOfDay(10)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stop != StopRepeated {
		t.Errorf("stop = %s, want repeated_page", res.Stop)
	}
	if res.Pages != 2 || len(res.Articles) != 2 {
		t.Errorf("pages = %d, articles = %d", res.Pages, len(res.Articles))
	}
	if s.State() != StateDone {
		t.Errorf("state = %s after the walk", s.State())
	}
}

func TestScrapeFinishLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	f := &clampingFetcher{
		stubFetcher: stubFetcher{pages: map[string]string{"https://news.test/a": detailPage("a")}},
		prefix:      "https://news.test/list?page=",
		listing:     listPage(li("March 5, 2021", "/a", "A")),
	}
	s := New(f, config.DefaultConfig().Scrape, logger)

	if _, err := s.Scrape(context.Background(), pagedSite(), types.Window{Start: day(1), End: endOfDay(10)}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "walk finished") {
		t.Errorf("walk summary logged at info:\n%s", buf.String())
	}
}

func TestStateStrings(t *testing.T) {
	if StateEntries.String() != "entries" || StopNoNext.String() != "no_next" || StopRepeated.String() != "repeated_page" {
		t.Error("unexpected names")
	}
}
