// Package sites holds the per-newsroom configuration records that drive the
// single listing walker in package engine.
package sites

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/pressgoat/internal/parser"
)

// Pagination styles.
const (
	StylePage   = "page"
	StyleOffset = "offset"
	StyleMonth  = "month"
	StyleYear   = "year"
	StyleFeed   = "feed"
)

// Transports.
const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

// FallbackReadability extracts the body with go-readability when the
// detail selector matches nothing.
const FallbackReadability = "readability"

// Site is the configuration record for one newsroom.
type Site struct {
	// Name is the lowercase enumeration key, e.g. "british columbia".
	Name string `yaml:"name"`
	// Region is written to Article.Region.
	Region string `yaml:"region"`
	// Query selects the selector language: css (default) or xpath.
	Query string `yaml:"query"`
	// Render selects the transport: http (default) or browser.
	Render string `yaml:"render"`

	Pagination Pagination `yaml:"pagination"`
	Listing    Listing    `yaml:"listing"`
	Detail     Detail     `yaml:"detail"`
}

// Pagination describes how listing page URLs are produced.
type Pagination struct {
	Style string `yaml:"style"`
	// URL is a template; see Site.PageURL for placeholders.
	URL   string `yaml:"url"`
	First int    `yaml:"first"`
	Step  int    `yaml:"step"`
	// DateParamLayout formats {start} and {end}.
	DateParamLayout string `yaml:"date_param_layout"`
	// Next is an optional "next page" indicator; when set and absent the
	// walk stops.
	Next string `yaml:"next"`
}

// Field selects one value relative to a node.
type Field struct {
	Selector string `yaml:"selector"`
	// Attr is the attribute to read; empty means text content.
	Attr string `yaml:"attr"`
}

// Skip drops listing entries whose attribute equals Value.
type Skip struct {
	Attr  string `yaml:"attr"`
	Value string `yaml:"value"`
}

// Listing describes how entries are read from a listing page.
type Listing struct {
	Items          string   `yaml:"items"`
	Date           Field    `yaml:"date"`
	DateLayouts    []string `yaml:"date_layouts"`
	DateStrip      []string `yaml:"date_strip"`
	DateFromDetail bool     `yaml:"date_from_detail"`
	YearFromPeriod bool     `yaml:"year_from_period"`
	Title          Field    `yaml:"title"`
	Link           Field    `yaml:"link"`
	// MultiLink emits one record per link under a single dated entry.
	MultiLink bool  `yaml:"multi_link"`
	Skip      *Skip `yaml:"skip"`
}

// Detail describes how the body is read from an article page.
type Detail struct {
	Body     Field  `yaml:"body"`
	Fallback string `yaml:"fallback"`
}

// Period is one step of a pagination walk. For numbered styles only Index
// is meaningful; calendar styles set Year (and Month).
type Period struct {
	Index int
	Year  int
	Month time.Month
}

// FileName returns the cache file name for a province name: spaces removed,
// lowercased, with a .csv extension.
func FileName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "")) + ".csv"
}

// Calendar reports whether the site paginates by calendar period.
func (s *Site) Calendar() bool {
	return s.Pagination.Style == StyleMonth || s.Pagination.Style == StyleYear
}

// PageURL expands the pagination template for one period.
//
// Placeholders: {page} {offset} {month} {year} {days_back} {start} {end}.
// {start} and {end} use DateParamLayout and are query-escaped.
func (s *Site) PageURL(p Period, start, end, now time.Time) string {
	layout := s.Pagination.DateParamLayout
	if layout == "" {
		layout = time.DateOnly
	}
	daysBack := int(now.Sub(start).Hours()/24) + 1
	if daysBack < 1 {
		daysBack = 1
	}

	r := strings.NewReplacer(
		"{page}", strconv.Itoa(p.Index),
		"{offset}", strconv.Itoa(p.Index),
		"{month}", strconv.Itoa(int(p.Month)),
		"{year}", strconv.Itoa(p.Year),
		"{days_back}", strconv.Itoa(daysBack),
		"{start}", url.QueryEscape(start.Format(layout)),
		"{end}", url.QueryEscape(end.Format(layout)),
	)
	return r.Replace(s.Pagination.URL)
}

// FirstPeriod returns the first period of a walk over [start, end].
func (s *Site) FirstPeriod(start, end time.Time) Period {
	switch s.Pagination.Style {
	case StyleMonth:
		return Period{Year: end.Year(), Month: end.Month()}
	case StyleYear:
		return Period{Year: end.Year(), Month: time.January}
	default:
		return Period{Index: s.Pagination.First}
	}
}

// NextPeriod advances p. ok is false once a calendar walk has moved before
// the period containing start.
func (s *Site) NextPeriod(p Period, start time.Time) (next Period, ok bool) {
	switch s.Pagination.Style {
	case StyleMonth:
		first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		floor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		if first.Before(floor) {
			return p, false
		}
		return Period{Year: first.Year(), Month: first.Month()}, true
	case StyleYear:
		if p.Year-1 < start.Year() {
			return p, false
		}
		return Period{Year: p.Year - 1, Month: time.January}, true
	case StyleFeed:
		return p, false
	default:
		step := s.Pagination.Step
		if step <= 0 {
			step = 1
		}
		return Period{Index: p.Index + step}, true
	}
}

// Validate checks a site record for missing or inconsistent fields.
func (s *Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("site name is required")
	}
	if s.Region == "" {
		return fmt.Errorf("site %q: region is required", s.Name)
	}
	switch s.Query {
	case parser.CSS, parser.XPath:
	default:
		return fmt.Errorf("site %q: query must be css or xpath, got %q", s.Name, s.Query)
	}
	switch s.Render {
	case RenderHTTP, RenderBrowser:
	default:
		return fmt.Errorf("site %q: render must be http or browser, got %q", s.Name, s.Render)
	}
	if s.Pagination.URL == "" {
		return fmt.Errorf("site %q: pagination.url is required", s.Name)
	}
	switch s.Pagination.Style {
	case StylePage, StyleOffset, StyleMonth, StyleYear:
		if s.Listing.Items == "" {
			return fmt.Errorf("site %q: listing.items is required", s.Name)
		}
		if s.Listing.Link.Selector == "" {
			return fmt.Errorf("site %q: listing.link is required", s.Name)
		}
		if len(s.Listing.DateLayouts) == 0 {
			return fmt.Errorf("site %q: listing.date_layouts is required", s.Name)
		}
	case StyleFeed:
	default:
		return fmt.Errorf("site %q: unknown pagination style %q", s.Name, s.Pagination.Style)
	}
	if s.Detail.Body.Selector == "" {
		return fmt.Errorf("site %q: detail.body is required", s.Name)
	}
	if s.Detail.Fallback != "" && s.Detail.Fallback != FallbackReadability {
		return fmt.Errorf("site %q: unknown detail fallback %q", s.Name, s.Detail.Fallback)
	}
	return nil
}

// applyDefaults fills optional fields.
func (s *Site) applyDefaults() {
	s.Name = strings.ToLower(strings.Join(strings.Fields(s.Name), " "))
	if s.Query == "" {
		s.Query = parser.CSS
	}
	if s.Render == "" {
		s.Render = RenderHTTP
	}
	if s.Pagination.Step == 0 {
		s.Pagination.Step = 1
	}
}
