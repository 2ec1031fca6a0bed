package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolio_aggregator"

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Upstream calls by endpoint and HTTP status (0 = transport failure).",
	}, []string{"endpoint", "status"})

	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream call latency by endpoint.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	aggregations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregations_total",
		Help:      "Aggregation outcomes: ok, not_found, partial_failure, malformed.",
	}, []string{"outcome"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by status: hit, miss, stale.",
	}, []string{"status"})

	cacheRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_refreshes_total",
		Help:      "Background refreshes by result: ok, failed.",
	}, []string{"result"})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Number of entries currently held by the refresh cache.",
	})

	registerOnce sync.Once
)

// MustRegisterMetrics registers all collectors on the default registry. Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(upstreamRequests, upstreamDuration, aggregations, cacheLookups, cacheRefreshes, cacheEntries)
	})
}

// RecordUpstreamCall counts one upstream call.
func RecordUpstreamCall(endpoint string, status int, took time.Duration) {
	upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	upstreamDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

// RecordAggregation counts one aggregation outcome.
func RecordAggregation(outcome string) {
	aggregations.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts one cache lookup.
func RecordCacheLookup(status string) {
	cacheLookups.WithLabelValues(status).Inc()
}

// RecordCacheRefresh counts one finished background refresh.
func RecordCacheRefresh(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	cacheRefreshes.WithLabelValues(result).Inc()
}

// SetCacheEntries publishes the current cache size.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}
