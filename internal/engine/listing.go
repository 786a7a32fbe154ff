package engine

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/pressgoat/internal/parser"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// entry is one article reference read from a listing page.
type entry struct {
	date  time.Time
	dated bool // false when the date lives on the detail page
	title string
	link  string
}

// listingPage is the parsed form of one listing request.
type listingPage struct {
	entries []entry
	// matched counts item nodes before skip rules, so a page holding only
	// skipped entries does not end the walk.
	matched int
	hasNext bool
}

// links returns the set of entry links on the page.
func (p *listingPage) links() map[string]struct{} {
	set := make(map[string]struct{}, len(p.entries))
	for _, e := range p.entries {
		set[e.link] = struct{}{}
	}
	return set
}

func (w *walk) listing(ctx context.Context, pageURL string, period sites.Period) (*listingPage, error) {
	if w.site.Pagination.Style == sites.StyleFeed {
		resp, err := w.get(ctx, pageURL, types.TagFeed)
		if err != nil {
			return nil, err
		}
		return w.feedEntries(resp)
	}

	resp, err := w.get(ctx, pageURL, types.TagListing)
	if err != nil {
		return nil, err
	}
	root, err := parser.ParseResponse(resp, w.site.Query)
	if err != nil {
		return nil, err
	}

	l := w.site.Listing
	items, err := root.Find(l.Items)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Selector: l.Items, Err: err}
	}

	base := resp.BaseURL()
	page := &listingPage{matched: len(items)}
	for _, item := range items {
		if l.Skip != nil {
			if v, ok := item.Attr(l.Skip.Attr); ok && v == l.Skip.Value {
				continue
			}
		}

		var e entry
		if !l.DateFromDetail {
			raw, err := parser.First(item, l.Date.Selector, l.Date.Attr)
			if err != nil {
				return nil, err
			}
			year := 0
			if l.YearFromPeriod {
				year = period.Year
			}
			e.date, err = ParseDate(raw, l.DateLayouts, l.DateStrip, year)
			if err != nil {
				w.drop("bad_date", "unparseable listing date", "url", pageURL, "raw", raw, "error", err)
				continue
			}
			e.dated = true
		}

		titles, links, err := w.titlesAndLinks(item)
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			w.drop("no_link", "listing entry without link", "url", pageURL)
			continue
		}
		for i, link := range links {
			abs, err := resolve(base, link)
			if err != nil {
				w.drop("bad_link", "unresolvable link", "url", pageURL, "link", link, "error", err)
				continue
			}
			e.link = abs
			e.title = ""
			if i < len(titles) {
				e.title = parser.Collapse(titles[i])
			}
			page.entries = append(page.entries, e)
		}
	}

	if w.site.Pagination.Next != "" {
		nodes, err := root.Find(w.site.Pagination.Next)
		if err != nil {
			return nil, &types.ParseError{URL: pageURL, Selector: w.site.Pagination.Next, Err: err}
		}
		page.hasNext = len(nodes) > 0
	}
	return page, nil
}

// titlesAndLinks reads one title/link pair, or every pair for multi-link
// entries.
func (w *walk) titlesAndLinks(item parser.Node) (titles, links []string, err error) {
	l := w.site.Listing
	if l.MultiLink {
		if titles, err = parser.Values(item, l.Title.Selector, l.Title.Attr); err != nil {
			return nil, nil, err
		}
		if links, err = parser.Values(item, l.Link.Selector, l.Link.Attr); err != nil {
			return nil, nil, err
		}
		return titles, links, nil
	}

	title, err := parser.First(item, l.Title.Selector, l.Title.Attr)
	if err != nil {
		return nil, nil, err
	}
	link, err := parser.First(item, l.Link.Selector, l.Link.Attr)
	if err != nil {
		return nil, nil, err
	}
	if link == "" {
		return nil, nil, nil
	}
	return []string{title}, []string{link}, nil
}

// feedEntries reads an RSS or Atom listing, newest first.
func (w *walk) feedEntries(resp *types.Response) (*listingPage, error) {
	feed, err := gofeed.NewParser().ParseString(string(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.BaseURL(), Err: fmt.Errorf("parse feed: %w", err)}
	}

	page := &listingPage{matched: len(feed.Items)}
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		published, ok := feedDate(item.Published, item.PublishedParsed)
		if !ok {
			published, ok = feedDate(item.Updated, item.UpdatedParsed)
		}
		if link == "" || !ok {
			w.drop("bad_feed_item", "feed item without link or date", "title", item.Title)
			continue
		}
		abs, err := resolve(resp.BaseURL(), link)
		if err != nil {
			w.drop("bad_link", "unresolvable link", "link", link, "error", err)
			continue
		}
		page.entries = append(page.entries, entry{
			date:  published,
			dated: true,
			title: parser.Collapse(item.Title),
			link:  abs,
		})
	}

	sort.SliceStable(page.entries, func(i, j int) bool {
		return page.entries[i].date.After(page.entries[j].date)
	})
	return page, nil
}

// feedLayouts are the date forms RSS and Atom newsrooms publish.
var feedLayouts = []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", time.RFC3339}

// feedDate reads a feed item's date as wall-clock time. gofeed converts its
// parsed dates to UTC, so the raw string is tried first to keep the
// newsroom's own reading; the parsed value is used only when that fails.
func feedDate(raw string, parsed *time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return wallClock(t), true
		}
	}
	if parsed != nil {
		return wallClock(*parsed), true
	}
	return time.Time{}, false
}

// ParseDate parses a listing or article date. Whitespace is collapsed and
// every strip substring removed before the layouts are tried in order. A
// non-zero year fills in layouts that carry none. RFC 3339 values are
// accepted as a last resort. The result is wall-clock time in UTC.
func ParseDate(raw string, layouts, strip []string, year int) (time.Time, error) {
	s := parser.Collapse(raw)
	for _, cut := range strip {
		s = strings.ReplaceAll(s, cut, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if year > 0 && t.Year() == 0 {
			t = time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return wallClock(t), nil
	}
	return time.Time{}, fmt.Errorf("date %q matches none of %d layouts", s, len(layouts))
}

// wallClock drops the zone offset, keeping the local reading.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// resolve makes ref absolute against base and strips the fragment.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	abs := b.ResolveReference(r)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidURL, abs)
	}
	return abs.String(), nil
}
