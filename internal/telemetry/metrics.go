package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across every route.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "edon",
		Subsystem: "api",
		Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// DecisionsTotal counts Governor decisions by verdict and reason code.
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "edon",
		Subsystem: "decisions",
		Name: "total",
		Help: "Total number of decisions by verdict and reason code.",
	},
	[]string{"verdict", "reason_code"},
)

// RateLimitHitsTotal counts requests rejected by the rate limiter.
var RateLimitHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "edon",
		Subsystem: "ratelimit",
		Name: "hits_total",
		Help: "Total number of rate-limited requests by window.",
	},
	[]string{"window"},
)

// AuditWriteFailuresTotal counts audit persistence failures.
var AuditWriteFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "edon",
		Subsystem: "audit",
		Name: "write_failures_total",
		Help: "Total number of audit event persistence failures.",
	},
)

// DecisionLatency tracks end-to-end decision latency for the trust-spec
// benchmark endpoint.
var DecisionLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "edon",
		Subsystem: "decisions",
		Name: "latency_seconds",
		Help: "Decision latency in seconds, from authentication to response.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
)

// ActiveIntentsGauge tracks the current count of intents with a non-expired
// default binding, used by the metrics endpoint's "active intent count".
var ActiveIntentsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "edon",
		Subsystem: "intents",
		Name: "active",
		Help: "Number of intents currently set as a tenant default.",
	},
)

// All returns every EdonGateway-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		DecisionsTotal,
		RateLimitHitsTotal,
		AuditWriteFailuresTotal,
		DecisionLatency,
		ActiveIntentsGauge,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, HTTPRequestDuration, and the EdonGateway collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
