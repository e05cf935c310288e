package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatebooks_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "estatebooks_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	cellUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatebooks_cell_updates_total",
		Help: "Count of dispatched cell updates by table and result",
	}, []string{"table", "result"})

	sectionFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatebooks_section_fetches_total",
		Help: "Count of table section fetches by table and result",
	}, []string{"table", "result"})

	sectionFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "estatebooks_section_fetch_duration_seconds",
		Help:    "Duration of display RPC calls per table",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})

	optionsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatebooks_options_cache_total",
		Help: "Option list cache lookups by result",
	}, []string{"kind", "result"})

	tenantResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatebooks_tenant_resolutions_total",
		Help: "Tenant resolutions by source",
	}, []string{"source"})

	liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "estatebooks_live_connections",
		Help: "Open /ws/events connections",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveCellUpdate counts a dispatched update with a result label
func ObserveCellUpdate(table, result string) {
	cellUpdates.WithLabelValues(table, result).Inc()
}

// ObserveSectionFetch records one display RPC call
func ObserveSectionFetch(table, result string, duration time.Duration) {
	sectionFetches.WithLabelValues(table, result).Inc()
	sectionFetchDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// ObserveOptionsCache counts a cache hit or miss
func ObserveOptionsCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	optionsCache.WithLabelValues(kind, result).Inc()
}

// ObserveTenantResolution counts where a request's tenant came from
func ObserveTenantResolution(source string) {
	tenantResolutions.WithLabelValues(source).Inc()
}

// IncrementLive increments the live connection gauge.
func IncrementLive() {
	liveConnections.Inc()
}

// DecrementLive decrements the live connection gauge.
func DecrementLive() {
	liveConnections.Dec()
}
