// Package parser wraps goquery and htmlquery behind one small node API so a
// site record can choose its selector language without the walker caring.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// Selector languages.
const (
	CSS   = "css"
	XPath = "xpath"
)

// Node is one element of a parsed document.
type Node interface {
	// Find returns the nodes matched by selector relative to this node.
	// An empty selector or "." matches the node itself.
	Find(selector string) ([]Node, error)
	// Text returns the text content of the node.
	Text() string
	// Attr returns an attribute value and whether it was present.
	Attr(name string) (string, bool)
}

// Parse parses an HTML body with the given selector language.
func Parse(body []byte, query string) (Node, error) {
	switch query {
	case "", CSS:
		return parseCSS(body)
	case XPath:
		return parseXPath(body)
	default:
		return nil, fmt.Errorf("unknown selector language %q", query)
	}
}

// ParseResponse parses a fetched response, tagging errors with its URL.
func ParseResponse(resp *types.Response, query string) (Node, error) {
	root, err := Parse(resp.Body, query)
	if err != nil {
		return nil, &types.ParseError{URL: resp.BaseURL(), Err: err}
	}
	return root, nil
}

// Values returns the trimmed, non-empty values selected under n. attr picks
// an attribute; empty means text content.
func Values(n Node, selector, attr string) ([]string, error) {
	nodes, err := n.Find(selector)
	if err != nil {
		return nil, &types.ParseError{Selector: selector, Err: err}
	}

	var values []string
	for _, m := range nodes {
		var val string
		if attr == "" || attr == "text" {
			val = m.Text()
		} else {
			val, _ = m.Attr(attr)
		}
		if val = strings.TrimSpace(val); val != "" {
			values = append(values, val)
		}
	}
	return values, nil
}

// First returns the first value selected under n, or "" when nothing matched.
func First(n Node, selector, attr string) (string, error) {
	values, err := Values(n, selector, attr)
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// Readable extracts the main text of an article page with readability.
func Readable(body []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidURL, pageURL)
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", types.ErrNoBody
	}
	return text, nil
}

// Collapse folds runs of whitespace into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
