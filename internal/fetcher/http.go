package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. Bodies are decompressed
// and transcoded to UTF-8 before they are returned.
type HTTPFetcher struct {
	client *http.Client
	cfg    *config.FetcherConfig
	logger *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.FetcherConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle / 2,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecure,
		},
		DisableCompression: true, // decompressed below, including brotli
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.MaxRedirects)
		}
		return nil
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport:     transport,
			Jar:           jar,
			Timeout:       cfg.RequestTimeout,
			CheckRedirect: redirectPolicy,
		},
		cfg:    cfg,
		logger: logger.With("component", "http_fetcher"),
	}, nil
}

// Fetch executes an HTTP request and returns the response. Any status
// outside 2xx is a *types.FetchError; there are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	ua := f.cfg.UserAgent
	if ua == "" {
		ua = "pressgoat/" + config.Version
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-CA,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if len(raw) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: types.ErrEmptyResponse}
	}

	contentType := httpResp.Header.Get("Content-Type")
	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("decode charset: %w", err)}
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("decode charset: %w", err)}
	}

	resp := types.NewResponse(req, httpResp, body, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"tag", req.Tag,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// decompressReader wraps a reader with the appropriate decompressor.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// RandomDelay returns a random delay around the base duration (±25%).
func RandomDelay(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	jitter := float64(base) * 0.25
	return base + time.Duration(rand.Float64()*2*jitter-jitter)
}
