package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request tags used in logs and metrics.
const (
	TagListing = "listing"
	TagDetail  = "detail"
	TagFeed    = "feed"
)

// Request represents a page to be fetched.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Tag categorizes this request (listing, detail, feed).
	Tag string

	// Render selects the transport: "http" or "browser".
	Render string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a GET Request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		Render:    "http",
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// Resolve resolves ref against the request URL.
func (r *Request) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, ref)
	}
	if r.URL == nil {
		return u.String(), nil
	}
	resolved := r.URL.ResolveReference(u)
	resolved.Fragment = ""
	return resolved.String(), nil
}
