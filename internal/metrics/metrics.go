// Package metrics provides Prometheus metrics for the cache manager.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfcache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hfcache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Download metrics
	downloadsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hfcache_downloads_started_total",
			Help: "Total number of downloads requested",
		},
	)

	downloadsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfcache_downloads_finished_total",
			Help: "Total number of downloads that reached a final status",
		},
		[]string{"status"},
	)

	downloadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfcache_downloads_active",
			Help: "Number of downloads currently transferring",
		},
	)

	downloadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hfcache_download_retries_total",
			Help: "Total number of download attempts that were retried",
		},
	)

	bytesDownloadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hfcache_bytes_downloaded_total",
			Help: "Total bytes fetched from the model hub",
		},
	)

	// Cache metrics
	cacheScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfcache_cache_scan_duration_seconds",
			Help:    "Time to walk the cache root",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfcache_cache_size_bytes",
			Help: "Total size of the cache as of the last scan",
		},
	)

	cacheFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfcache_cache_files",
			Help: "Number of files in the cache as of the last scan",
		},
	)

	cacheRemovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfcache_cache_removals_total",
			Help: "Total repository folders removed from the cache",
		},
		[]string{"result"},
	)

	// Websocket metrics
	progressSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfcache_progress_subscribers",
			Help: "Number of open progress subscriptions",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDownloadStarted counts a new download request.
func RecordDownloadStarted() {
	downloadsStartedTotal.Inc()
}

// RecordDownloadFinished counts a download reaching a final status.
func RecordDownloadFinished(status string) {
	downloadsFinishedTotal.WithLabelValues(status).Inc()
}

// IncActiveDownloads marks a download as transferring.
func IncActiveDownloads() {
	downloadsActive.Inc()
}

// DecActiveDownloads marks a transfer as done.
func DecActiveDownloads() {
	downloadsActive.Dec()
}

// RecordDownloadRetry counts a retried attempt.
func RecordDownloadRetry() {
	downloadRetriesTotal.Inc()
}

// AddBytesDownloaded adds transferred bytes.
func AddBytesDownloaded(n int64) {
	if n > 0 {
		bytesDownloadedTotal.Add(float64(n))
	}
}

// RecordCacheScan records a scan and the totals it observed.
func RecordCacheScan(duration time.Duration, size int64, files int) {
	cacheScanDuration.Observe(duration.Seconds())
	cacheSizeBytes.Set(float64(size))
	cacheFiles.Set(float64(files))
}

// RecordCacheRemovals counts removed and failed folders.
func RecordCacheRemovals(removed, failed int) {
	if removed > 0 {
		cacheRemovalsTotal.WithLabelValues("removed").Add(float64(removed))
	}
	if failed > 0 {
		cacheRemovalsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// SetProgressSubscribers sets the number of open subscriptions.
func SetProgressSubscribers(n int) {
	progressSubscribers.Set(float64(n))
}
