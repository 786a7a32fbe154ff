package types

import (
	"strings"
	"time"
)

// Constant column values shared by every scraped record.
const (
	Country        = "Canada"
	SourceCategory = "Government Website"
)

// Columns is the fixed column schema of persisted tables, in order.
var Columns = []string{
	"start_date",
	"country",
	"region",
	"subregion",
	"source_url",
	"source_category",
	"source_title",
	"source_full_text",
}

// Article is a single scraped press release.
type Article struct {
	// StartDate is the source-reported publication time (wall clock, UTC).
	StartDate time.Time `json:"start_date" bson:"start_date"`

	Country   string `json:"country"   bson:"country"`
	Region    string `json:"region"    bson:"region"`
	Subregion string `json:"subregion" bson:"subregion"`

	// SourceURL is the absolute detail page URL.
	SourceURL      string `json:"source_url"      bson:"source_url"`
	SourceCategory string `json:"source_category" bson:"source_category"`
	SourceTitle    string `json:"source_title"    bson:"source_title"`

	// SourceFullText is the body text; tables are deduplicated on it.
	SourceFullText string `json:"source_full_text" bson:"source_full_text"`
}

// NewArticle creates an Article with the constant columns filled in.
func NewArticle(region string, published time.Time, link, title, body string) Article {
	return Article{
		StartDate:      published,
		Country:        Country,
		Region:         region,
		SourceURL:      link,
		SourceCategory: SourceCategory,
		SourceTitle:    title,
		SourceFullText: body,
	}
}

// TextFields returns pointers to the free-text columns so callers can
// rewrite them in place.
func (a *Article) TextFields() []*string {
	return []*string{
		&a.Country,
		&a.Region,
		&a.Subregion,
		&a.SourceURL,
		&a.SourceCategory,
		&a.SourceTitle,
		&a.SourceFullText,
	}
}

// Table is an ordered sequence of articles, newest first by fetch convention.
type Table []Article

// Len returns the number of rows.
func (t Table) Len() int { return len(t) }

// MaxDate returns the latest publication date in the table.
func (t Table) MaxDate() (time.Time, bool) {
	if len(t) == 0 {
		return time.Time{}, false
	}
	latest := t[0].StartDate
	for _, a := range t[1:] {
		if a.StartDate.After(latest) {
			latest = a.StartDate
		}
	}
	return latest, true
}

// MinDate returns the earliest publication date in the table.
func (t Table) MinDate() (time.Time, bool) {
	if len(t) == 0 {
		return time.Time{}, false
	}
	earliest := t[0].StartDate
	for _, a := range t[1:] {
		if a.StartDate.Before(earliest) {
			earliest = a.StartDate
		}
	}
	return earliest, true
}

// Texts returns the set of distinct body texts in the table.
func (t Table) Texts() map[string]struct{} {
	set := make(map[string]struct{}, len(t))
	for _, a := range t {
		set[a.SourceFullText] = struct{}{}
	}
	return set
}

// Window bounds the publication dates a fetch should retrieve.
// Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window is non-inverted.
func (w Window) Valid() bool {
	return !w.Start.After(w.End)
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}

// NormalizeName lowercases a province name and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
