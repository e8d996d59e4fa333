// Package metrics holds the Prometheus instrumentation of the relay.
//
// A Metrics value owns its own registry so that several relays (and tests)
// can live in one process. All methods are safe on a nil *Metrics, which
// disables instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Request outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeCancelled     = "cancelled"
	OutcomeUpstreamError = "upstream_error"
	OutcomeError         = "error"
)

// Relay modes.
const (
	ModeStream   = "stream"
	ModeEmulated = "emulated"
	ModeBuffered = "buffered"
)

// Metrics records relay activity.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	fragments       *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	cancellations   *prometheus.CounterVec
	eventsDropped   prometheus.Counter
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relay requests by provider, mode and outcome",
		}, []string{"provider", "mode", "outcome"}),

		fragments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_fragments_forwarded_total",
			Help:      "Reply fragments forwarded to callers",
		}, []string{"provider"}),

		upstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_upstream_latency_seconds",
			Help:      "Time until the upstream response headers arrive",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),

		cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_cancellations_total",
			Help:      "Relay sessions cancelled by caller disconnect",
		}, []string{"provider"}),

		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Turn events dropped because the publish queue was full",
		}),
	}
}

// Registry returns the registry holding every relay metric.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(provider, mode, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, mode, outcome).Inc()
}

func (m *Metrics) AddFragments(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fragments.WithLabelValues(provider).Add(float64(n))
}

func (m *Metrics) ObserveUpstreamLatency(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveCancellation(provider string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveEventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
