// Package metrics exposes synchronizer and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const namespace = "resource_status"

type Prometheus struct {
	registry *prometheus.Registry

	mutations  *prometheus.CounterVec
	reconciles *prometheus.CounterVec
	version    prometheus.Gauge
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

var _ ports.SyncMetrics = (*Prometheus)(nil)

// New registers all collectors on a private registry, plus the Go runtime
// and process collectors.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Resource mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "Client reconciliations by resulting action.",
		}, []string{"action"}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_version",
			Help:      "Current snapshot version.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.registry.MustRegister(
		p.mutations, p.reconciles, p.version, p.requests, p.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveMutation(action domain.AuditAction, outcome string) {
	p.mutations.WithLabelValues(string(action), outcome).Inc()
}

func (p *Prometheus) ObserveReconcile(action domain.ReconcileAction) {
	p.reconciles.WithLabelValues(string(action)).Inc()
}

func (p *Prometheus) SetVersion(version int64) {
	p.version.Set(float64(version))
}

// ObserveHTTP records one served request. route is the registered pattern,
// not the raw path, to keep label cardinality bounded.
func (p *Prometheus) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	p.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	p.durations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
