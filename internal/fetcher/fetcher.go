// Package fetcher retrieves listing and article pages over plain HTTP or a
// headless browser.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Router sends each request to the HTTP or browser fetcher according to
// Request.Render. The browser is launched on first use.
type Router struct {
	http   Fetcher
	cfg    *config.FetcherConfig
	logger *slog.Logger

	mu         sync.Mutex
	browser    Fetcher
	newBrowser func() (Fetcher, error)
}

// NewRouter creates a Router over a fresh HTTP fetcher.
func NewRouter(cfg *config.FetcherConfig, logger *slog.Logger) (*Router, error) {
	hf, err := NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	r := &Router{
		http:   hf,
		cfg:    cfg,
		logger: logger,
	}
	r.newBrowser = func() (Fetcher, error) {
		return NewBrowserFetcher(r.cfg, r.logger)
	}
	return r, nil
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Render != "browser" {
		return r.http.Fetch(ctx, req)
	}

	r.mu.Lock()
	if r.browser == nil {
		b, err := r.newBrowser()
		if err != nil {
			r.mu.Unlock()
			return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("start browser: %w", err)}
		}
		r.browser = b
	}
	b := r.browser
	r.mu.Unlock()

	return b.Fetch(ctx, req)
}

// Close implements Fetcher.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.http.Close()
	if r.browser != nil {
		if berr := r.browser.Close(); berr != nil && err == nil {
			err = berr
		}
		r.browser = nil
	}
	return err
}

// Type implements Fetcher.
func (r *Router) Type() string { return "router" }
