// Package metrics wraps prometheus/client_golang's registry with the
// counters, gauges, and histograms River's engine and service supervisor
// need. It replaces a hand-rolled counter/gauge registry and text
// exposition writer with the standard client so River's /metrics endpoint
// speaks the same exposition format any other Prometheus-scraped service
// does, and so the histogram bucket math isn't River's to get right.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric River exports, all registered against a
// private prometheus.Registry rather than the global default so multiple
// Registry instances (as in tests) never collide.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	ActiveConns     *prometheus.GaugeVec
	UpstreamLatency *prometheus.HistogramVec
	RateLimitDenied *prometheus.CounterVec
	PathControlHits *prometheus.CounterVec
}

// NewRegistry builds and registers River's metric set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river",
			Name:      "requests_total",
			Help:      "Total requests handled, by service, method and response status.",
		}, []string{"service", "method", "status"}),
		ActiveConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "river",
			Name:      "active_connections",
			Help:      "Currently open downstream connections, by listener and service.",
		}, []string{"listener", "service"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "river",
			Name:      "upstream_latency_seconds",
			Help:      "Time spent waiting on the upstream response, by service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river",
			Name:      "rate_limit_denied_total",
			Help:      "Requests denied by rate limiting, by service.",
		}, []string{"service"}),
		PathControlHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river",
			Name:      "path_control_filter_hits_total",
			Help:      "Times a path-control filter took effect, by service and stage.",
		}, []string{"service", "stage"}),
	}

	reg.MustRegister(r.RequestsTotal, r.ActiveConns, r.UpstreamLatency, r.RateLimitDenied, r.PathControlHits)
	return r
}

// Handler returns the http.Handler that serves this registry's metrics in
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
