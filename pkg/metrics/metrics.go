// Package metrics holds the Prometheus metrics of the tenancy core.
//
// Every component takes a *Metrics and treats nil as "metrics disabled",
// so tests can pass nil or a Metrics built on a private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schoolhost"

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	ProvisionTotal         *prometheus.CounterVec
	ProvisionDuration      prometheus.Histogram
	ProvisionTableFailures prometheus.Counter

	MigrationTotal    *prometheus.CounterVec
	MigrationDuration prometheus.Histogram

	QuotaChecks     *prometheus.CounterVec
	QuotaRejections *prometheus.CounterVec
	QuotaAlerts     *prometheus.CounterVec

	RateLimitDecisions     *prometheus.CounterVec
	RateLimitMirrorDropped prometheus.Counter
	RateLimitWindows       prometheus.Gauge

	TenantResolutions  *prometheus.CounterVec
	TenantCacheHits    prometheus.Counter
	TenantCacheMisses  prometheus.Counter
	TenantConnections  prometheus.Gauge
	GlobalLimitRejects prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProvisionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "total",
			Help:      "Provisioning runs by result.",
		}, []string{"result"}), // result: success, partial, failed, conflict, invalid
		ProvisionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "duration_seconds",
			Help:      "Duration of provisioning runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ProvisionTableFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "table_failures_total",
			Help:      "Catalog tables that failed to apply during provisioning.",
		}),
		MigrationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "total",
			Help:      "Tenant migrations by result.",
		}, []string{"result"}), // result: success, failed
		MigrationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "duration_seconds",
			Help:      "Duration of single tenant migrations.",
			Buckets:   prometheus.DefBuckets,
		}),
		QuotaChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "checks_total",
			Help:      "Quota checks by category and outcome.",
		}, []string{"category", "outcome"}), // outcome: ok, exceeded, unlimited
		QuotaRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Usage updates refused because they would exceed the quota.",
		}, []string{"category"}),
		QuotaAlerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "alerts_total",
			Help:      "Quota alerts raised by severity.",
		}, []string{"severity"}),
		RateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by result.",
		}, []string{"result"}), // result: allowed, denied
		RateLimitMirrorDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "mirror_dropped_total",
			Help:      "Rate limit snapshots dropped because the mirror buffer was full.",
		}),
		RateLimitWindows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "windows",
			Help:      "Rate limit windows held in memory.",
		}),
		TenantResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Tenant resolutions by source.",
		}, []string{"source"}), // source: subdomain, path, session, none
		TenantCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "cache_hits_total",
			Help:      "Tenant lookup cache hits.",
		}),
		TenantCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "cache_misses_total",
			Help:      "Tenant lookup cache misses.",
		}),
		TenantConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "connections",
			Help:      "Open tenant database handles.",
		}),
		GlobalLimitRejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "global_limit_rejections_total",
			Help:      "Requests rejected by the global per-IP limiter.",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}
