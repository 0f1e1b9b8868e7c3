package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.hackfix.me/strata/db/migrator"
)

const metricsNamespace = "strata"

// Metrics holds the Prometheus collectors exposed on /metrics. Each instance
// has its own registry, so that multiple servers can run in the same process.
type Metrics struct {
	registry *prometheus.Registry

	MigrationsApplied   prometheus.Counter
	Passes              *prometheus.CounterVec
	PassDuration        prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MigrationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "migrations_applied_total",
			Help:      "Total number of database migrations applied",
		}),
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "migration_passes_total",
			Help:      "Total number of migration passes, by result",
		}, []string{"result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "migration_pass_duration_seconds",
			Help:      "Duration of migration passes in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.MigrationsApplied,
		m.Passes,
		m.PassDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObservePass records the result of a migration pass. summary may be nil.
func (m *Metrics) ObservePass(summary *migrator.Summary, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Passes.WithLabelValues(result).Inc()

	if summary == nil {
		return
	}
	m.MigrationsApplied.Add(float64(summary.Applied()))
	m.PassDuration.Observe(summary.Duration.Seconds())
}

// ObserveRequest records a served HTTP request. route is the pattern that
// matched the request.
func (m *Metrics) ObserveRequest(method, route string, code int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler returns the HTTP handler that exposes the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
