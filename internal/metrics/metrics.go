// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page status label values.
const (
	StatusOK         = "ok"
	StatusFetchError = "fetch_error"
)

// Product outcome label values.
const (
	ProductSaved            = "saved"
	ProductExtractionFailed = "extraction_failed"
	ProductPriceDefaulted   = "price_defaulted"
	ProductStoreFailed      = "store_failed"
)

// Publish outcome label values.
const (
	PublishOK     = "ok"
	PublishFailed = "failed"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerProductsTotal          *prometheus.CounterVec
	crawlerFrontierQueued         prometheus.Gauge
	crawlerFrontierVisited        prometheus.Gauge
	crawlerRateLimitDelaysSeconds prometheus.Histogram
	crawlerPublishTotal           *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerProductsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_products_total",
				Help: "Product page outcomes, labeled by result.",
			},
			[]string{"result"},
		)

		crawlerFrontierQueued = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_queued",
				Help: "URLs waiting in the crawl frontier.",
			},
		)

		crawlerFrontierVisited = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_visited",
				Help: "URLs already visited in this run.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of inter-fetch wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlerPublishTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_observations_published_total",
				Help: "Observation events published, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts a fetched (or failed) page.
func ObservePage(pageURL string, status string, bytesFetched int) {
	site := SanitizeSite(pageURL)
	crawlerPagesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveProduct counts a product page outcome.
func ObserveProduct(result string) {
	crawlerProductsTotal.WithLabelValues(result).Inc()
}

// SetFrontier publishes the current frontier sizes.
func SetFrontier(queued, visited int) {
	crawlerFrontierQueued.Set(float64(queued))
	crawlerFrontierVisited.Set(float64(visited))
}

// ObserveRateLimitDelay records how long a fetch waited for its slot.
func ObserveRateLimitDelay(duration time.Duration) {
	crawlerRateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObservePublish counts an observation publish attempt.
func ObservePublish(result string) {
	crawlerPublishTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
