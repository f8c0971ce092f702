// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Upstream metrics
	UpstreamCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_upstream_calls_total",
		Help: "Total number of upstream flow API calls by HTTP status",
	}, []string{"service", "status"})
	UpstreamCallDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_upstream_call_duration_seconds",
		Help:    "Duration of upstream flow API calls in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Cache metrics, tier is "probe" or "aggregate"
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_cache_hits_total",
		Help: "Total number of cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_cache_misses_total",
		Help: "Total number of cache misses by tier",
	}, []string{"tier"})

	// Quota metrics
	QuotaPercentUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traffic_quota_percent_used",
		Help: "Hourly quota usage per external service (0-100)",
	}, []string{"service"})

	// Collection metrics
	CollectDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_collect_duration_seconds",
		Help:    "Duration of one acquisition cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})
	DegradedResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traffic_degraded_results_total",
		Help: "Total number of batches served from stale cache after live failure",
	})

	// API metrics
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traffic_http_request_duration_seconds",
		Help:    "Duration of dashboard API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})
)

func init() {
	prometheus.MustRegister(
		UpstreamCallsTotal,
		UpstreamCallDurationSeconds,
		CacheHitsTotal,
		CacheMissesTotal,
		QuotaPercentUsed,
		CollectDurationSeconds,
		DegradedResultsTotal,
		HTTPRequestDurationSeconds,
	)
}
