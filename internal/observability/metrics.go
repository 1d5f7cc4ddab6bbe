package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chif_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chif_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TenantResolutions counts resolved requests per site.
	TenantResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chif_tenant_resolutions_total",
		Help: "Requests resolved to each tenant site",
	}, []string{"site", "default"})

	// AccessDecisions counts gate outcomes per route class.
	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chif_access_decisions_total",
		Help: "Access gate decisions by outcome",
	}, []string{"outcome"})

	// CacheLookups counts cache-aside lookups by cache name and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chif_cache_lookups_total",
		Help: "Cache-aside lookups by cache and result (hit, miss, error)",
	}, []string{"cache", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
