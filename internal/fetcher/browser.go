package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod. It
// serves newsrooms whose listings are rendered client side.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     *config.FetcherConfig
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.FetcherConfig, logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf := &BrowserFetcher{
		browser: browser,
		cfg:     cfg,
		logger:  logger.With("component", "browser_fetcher"),
	}
	bf.logger.Info("browser fetcher ready", "stealth", cfg.Stealth)
	return bf, nil
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	start := time.Now()

	page, err := bf.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer func() { _ = page.Close() }()
	page = page.Context(ctx)

	if bf.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.cfg.UserAgent}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	// Rod does not expose the document status code.
	return types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration), nil
}

func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	if bf.cfg.Stealth {
		page, err := stealth.Page(bf.browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
