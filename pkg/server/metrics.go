package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace is the Prometheus namespace for all server metrics.
const metricsNamespace = "pdfserver"

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	pagesRendered  *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	documentLoads  *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	sessionsTotal  prometheus.Counter
	sessionsSwept  prometheus.Counter
}

// NewMetrics creates the server metrics on a fresh registry, so multiple
// server instances (tests included) never fight over collector names.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		pagesRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_rendered_total",
			Help:      "Total pages rendered, by quality tier and result",
		}, []string{"quality", "result"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "render_duration_seconds",
			Help:      "Page render duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"quality"}),

		documentLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "document_loads_total",
			Help:      "Document load requests, by outcome (hit, miss, error)",
		}, []string{"result"}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ws_events_total",
			Help:      "WebSocket events handled, by event name",
		}, []string{"event"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Currently live viewing sessions",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created since process start",
		}),

		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_swept_total",
			Help:      "Idle sessions removed by the cleanup sweep",
		}),
	}
}

// Registry returns the registry backing these metrics for /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
