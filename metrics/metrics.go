package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the dashboard.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamDuration      *prometheus.HistogramVec

	LogoutsTotal        *prometheus.CounterVec
	StaleResponsesTotal prometheus.Counter
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadsdash_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadsdash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadsdash_upstream_requests_total",
			Help: "Calls made to the leads API by operation and outcome.",
		}, []string{"operation", "outcome"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadsdash_upstream_duration_seconds",
			Help:    "Latency of calls to the leads API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		LogoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadsdash_logouts_total",
			Help: "Session logouts by reason.",
		}, []string{"reason"}),

		StaleResponsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadsdash_stale_responses_total",
			Help: "Lead list responses discarded because a newer fetch was issued.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamDuration,
		m.LogoutsTotal,
		m.StaleResponsesTotal,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one call to the leads API. Nil receivers are
// allowed so callers need no guard.
func (m *Metrics) ObserveUpstream(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveLogout counts a logout.
func (m *Metrics) ObserveLogout(reason string) {
	if m == nil {
		return
	}
	m.LogoutsTotal.WithLabelValues(reason).Inc()
}

// ObserveStale counts a discarded out-of-order response.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.Inc()
}
