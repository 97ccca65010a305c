// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetches_total",
			Help: "Fetches completed, labeled by crawl stage and result.",
		},
		[]string{"stage", "result"},
	)
	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Histogram of fetch latencies, labeled by crawl stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)
	bytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)
	catalogPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_catalog_pages_total",
			Help: "Catalog pages processed, labeled by pagination outcome.",
		},
		[]string{"outcome"},
	)
	entriesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_entries_skipped_total",
			Help: "Catalog entries that produced no detail request, labeled by reason.",
		},
		[]string{"reason"},
	)
	fieldFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_field_failures_total",
			Help: "Field extractions that degraded to an absent or failed marker.",
		},
		[]string{"field"},
	)
	requestsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_requests_dropped_total",
			Help: "Requests discarded before fetching, labeled by reason.",
		},
		[]string{"reason"},
	)
	recordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_emitted_total",
			Help: "Merged records handed to the output sink.",
		},
	)
	sinkErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_sink_errors_total",
			Help: "Records the output sink failed to accept.",
		},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_http_requests_total",
			Help: "Status API requests, labeled by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_http_request_duration_seconds",
			Help:    "Status API request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_retries_total",
			Help: "Fetches attempted again after a transient failure, labeled by stage.",
		},
		[]string{"stage"},
	)
	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_rate_limit_delay_seconds",
			Help:    "Time fetches waited for a per-host rate limit token.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"site"},
	)
	requestsOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_requests_outstanding",
			Help: "Requests enqueued but not yet fully handled.",
		},
	)
)

// SanitizeSite extracts a lowercase hostname from a URL for use as a label.
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

// ObserveFetch records one completed fetch.
func ObserveFetch(stage, result, rawURL string, bytesFetched int, duration time.Duration) {
	fetchesTotal.WithLabelValues(stage, result).Inc()
	fetchDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(SanitizeSite(rawURL)).Add(float64(bytesFetched))
	}
}

// ObserveCatalogPage records the pagination outcome of one catalog page.
func ObserveCatalogPage(outcome string) {
	catalogPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSkippedEntry records a catalog entry that was not followed.
func ObserveSkippedEntry(reason string) {
	entriesSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveFieldFailure records a field that degraded to a sentinel.
func ObserveFieldFailure(field string) {
	fieldFailuresTotal.WithLabelValues(field).Inc()
}

// ObserveDroppedRequest records a request filtered before fetching.
func ObserveDroppedRequest(reason string) {
	requestsDroppedTotal.WithLabelValues(reason).Inc()
}

// ObserveRecord records one emitted record.
func ObserveRecord() {
	recordsTotal.Inc()
}

// ObserveSinkError records one record rejected by the sink.
func ObserveSinkError() {
	sinkErrorsTotal.Inc()
}

// SetOutstanding updates the outstanding request gauge.
func SetOutstanding(n int64) {
	requestsOutstanding.Set(float64(n))
}

// ObserveHTTPRequest records one status API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetchRetry counts a fetch that will be attempted again.
func ObserveFetchRetry(stage string) {
	fetchRetriesTotal.WithLabelValues(stage).Inc()
}

// ObserveRateLimitDelay records time spent waiting on a host's rate limiter.
func ObserveRateLimitDelay(site string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(site).Observe(d.Seconds())
}
