package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the data-consistency layer
type Collector struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheEntries prometheus.Gauge

	// Mutation metrics
	MutationsIssued     *prometheus.CounterVec
	MutationsCommitted  *prometheus.CounterVec
	MutationsRolledBack *prometheus.CounterVec
	ConflictsDiscarded  prometheus.Counter
	MutationDuration    *prometheus.HistogramVec

	// Session metrics
	SessionRefreshes *prometheus.CounterVec
	SessionLogouts   *prometheus.CounterVec

	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache reads that found a live entry",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache reads that found no entry",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of cached entries",
		}),

		MutationsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_issued_total",
			Help:      "Total number of mutations issued",
		}, []string{"kind"}),
		MutationsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_committed_total",
			Help:      "Total number of mutations committed",
		}, []string{"kind"}),
		MutationsRolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_rolled_back_total",
			Help:      "Total number of mutations rolled back after a remote failure",
		}, []string{"kind"}),
		ConflictsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_discarded_total",
			Help:      "Total number of rollbacks skipped because a newer mutation landed first",
		}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Mutation round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),

		SessionRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_refreshes_total",
			Help:      "Total number of token refresh attempts",
		}, []string{"outcome"}),
		SessionLogouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_logouts_total",
			Help:      "Total number of logouts",
		}, []string{"reason"}),

		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of gateway calls",
		}, []string{"method", "outcome"}),
	}

	registry.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.CacheEntries,
		c.MutationsIssued,
		c.MutationsCommitted,
		c.MutationsRolledBack,
		c.ConflictsDiscarded,
		c.MutationDuration,
		c.SessionRefreshes,
		c.SessionLogouts,
		c.GatewayRequests,
	)

	return c
}

// Handler returns an HTTP handler that serves this collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
