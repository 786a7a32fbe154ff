// Package observability exposes Prometheus metrics for scrape runs.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pressgoat"

// Metrics holds the scraper's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestsFailed   *prometheus.CounterVec
	ArticlesScraped  *prometheus.CounterVec
	ArticlesDropped  *prometheus.CounterVec
	ProvinceFailures *prometheus.CounterVec
	ArticlesAdded    *prometheus.CounterVec
	CachedArticles   *prometheus.GaugeVec
	LoadDuration     *prometheus.HistogramVec
	PublishFailures  prometheus.Counter

	logger *slog.Logger
}

// NewMetrics creates collectors on a private registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Pages requested, by province and page kind",
		}, []string{"province", "tag"}),
		RequestsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Page requests that failed, by province and page kind",
		}, []string{"province", "tag"}),
		ArticlesScraped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_scraped_total",
			Help:      "Articles emitted by the fetcher",
		}, []string{"province"}),
		ArticlesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_dropped_total",
			Help:      "Listing entries dropped before becoming articles",
		}, []string{"province", "reason"}),
		ProvinceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "province_failures_total",
			Help:      "Province fetches converted to an empty table",
		}, []string{"province"}),
		ArticlesAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_added_total",
			Help:      "Net rows added to a province cache by a merge",
		}, []string{"province"}),
		CachedArticles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_articles",
			Help:      "Rows in a province table after the last merge",
		}, []string{"province"}),
		LoadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to load one province",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"province"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Batches of new articles that failed to publish",
		}),
		logger: logger.With("component", "metrics"),
	}
}

// Request records one page request.
func (m *Metrics) Request(province, tag string, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(province, tag).Inc()
	if err != nil {
		m.RequestsFailed.WithLabelValues(province, tag).Inc()
	}
}

// Scraped records one emitted article.
func (m *Metrics) Scraped(province string) {
	if m == nil {
		return
	}
	m.ArticlesScraped.WithLabelValues(province).Inc()
}

// Dropped records one dropped listing entry.
func (m *Metrics) Dropped(province, reason string) {
	if m == nil {
		return
	}
	m.ArticlesDropped.WithLabelValues(province, reason).Inc()
}

// ProvinceFailed records a fetch converted to an empty table.
func (m *Metrics) ProvinceFailed(province string) {
	if m == nil {
		return
	}
	m.ProvinceFailures.WithLabelValues(province).Inc()
}

// Merged records the outcome of one cache merge.
func (m *Metrics) Merged(province string, added, total int, took time.Duration) {
	if m == nil {
		return
	}
	if added > 0 {
		m.ArticlesAdded.WithLabelValues(province).Add(float64(added))
	}
	m.CachedArticles.WithLabelValues(province).Set(float64(total))
	m.LoadDuration.WithLabelValues(province).Observe(took.Seconds())
}

// PublishFailed records a failed publish.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}
