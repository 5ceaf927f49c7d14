// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	batchesTotal        *prometheus.CounterVec
	itemsTotal          *prometheus.CounterVec
	cacheHitsTotal      prometheus.Counter
	scrapeDurationSecs  *prometheus.HistogramVec
	imageBytesTotal     prometheus.Counter
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardimg_batches_total",
				Help: "Total number of submitted batches, labeled by result.",
			},
			[]string{"result"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardimg_items_total",
				Help: "Total number of processed work items, labeled by status.",
			},
			[]string{"status"},
		)

		cacheHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cardimg_cache_hits_total",
				Help: "Total items skipped because the image was already cached.",
			},
		)

		scrapeDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardimg_scrape_duration_seconds",
				Help:    "Histogram of full scrape pipeline latencies, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		imageBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cardimg_image_bytes_total",
				Help: "Total image bytes uploaded to the content store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBatch increments the batch counter for the given result.
func ObserveBatch(result string) {
	if batchesTotal != nil {
		batchesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveItem increments the item counter for the given status.
func ObserveItem(status string) {
	if itemsTotal != nil {
		itemsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveCacheHit increments the idempotence cache-hit counter.
func ObserveCacheHit() {
	if cacheHitsTotal != nil {
		cacheHitsTotal.Inc()
	}
}

// ObserveScrape records the duration of one full scrape pipeline run.
func ObserveScrape(host string, duration time.Duration) {
	if scrapeDurationSecs != nil {
		scrapeDurationSecs.WithLabelValues(host).Observe(duration.Seconds())
	}
}

// AddImageBytes accumulates bytes uploaded to the content store.
func AddImageBytes(n int) {
	if imageBytesTotal != nil && n > 0 {
		imageBytesTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, codeClass(code)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

func codeClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
