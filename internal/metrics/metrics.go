// Package metrics exposes Prometheus collectors for the media gateway.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	storageListDuration        *prometheus.HistogramVec
	upstreamFetchesTotal       *prometheus.CounterVec
	cacheInvalidationsTotal    *prometheus.CounterVec

	once sync.Once
)

// InitMetrics registers the collectors. It is safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagate_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediagate_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagate_blob_cache_lookups_total",
				Help: "Blob URL cache lookups, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		storageListDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediagate_storage_list_duration_seconds",
				Help:    "Duration of object storage listings performed on cache misses.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		)

		upstreamFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagate_upstream_fetches_total",
				Help: "Upstream media fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cacheInvalidationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagate_cache_invalidations_total",
				Help: "Cache invalidations applied from content change events, labeled by action.",
			},
			[]string{"action"},
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	InitMetrics()
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latencies by matched route.
func Middleware() gin.HandlerFunc {
	InitMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveCacheLookup counts a blob cache hit or miss.
func ObserveCacheLookup(hit bool) {
	InitMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveStorageList records how long a storage listing took.
func ObserveStorageList(d time.Duration, err error) {
	InitMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storageListDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveUpstreamFetch counts an upstream fetch outcome ("ok", "status", "error").
func ObserveUpstreamFetch(outcome string) {
	InitMetrics()
	upstreamFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveInvalidation counts an applied invalidation ("delete", "clear", "ignored").
func ObserveInvalidation(action string) {
	InitMetrics()
	cacheInvalidationsTotal.WithLabelValues(action).Inc()
}
