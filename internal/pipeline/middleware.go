package pipeline

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/pressgoat/internal/types"
)

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// NewlineMiddleware replaces line breaks with single spaces in every
// free-text column, so each row stays on one line of the persisted table.
type NewlineMiddleware struct{}

func (m *NewlineMiddleware) Name() string { return "newline" }

func (m *NewlineMiddleware) Process(a *types.Article) (*types.Article, error) {
	for _, f := range a.TextFields() {
		*f = newlines.Replace(*f)
	}
	return a, nil
}

// TrimMiddleware trims surrounding whitespace from all text columns.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(a *types.Article) (*types.Article, error) {
	for _, f := range a.TextFields() {
		*f = strings.TrimSpace(*f)
	}
	return a, nil
}

// RegionMiddleware rejects articles whose region differs from the expected
// one. A mismatch means a cache file was written for another province.
type RegionMiddleware struct {
	Region string
}

func (m *RegionMiddleware) Name() string { return "region" }

func (m *RegionMiddleware) Process(a *types.Article) (*types.Article, error) {
	if a.Region != "" && m.Region != "" && a.Region != m.Region {
		return nil, fmt.Errorf("row region %q does not match %q", a.Region, m.Region)
	}
	return a, nil
}
