package hub

import (
	"net/http"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the hub's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	frames      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	transfers   prometheus.Counter
}

// NewMetrics creates collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foodlink",
			Name:      "hub_connections",
			Help:      "Number of connected dashboards",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodlink",
			Name:      "hub_frames_total",
			Help:      "Socket frames by direction and event",
		}, []string{"direction", "event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodlink",
			Name:      "hub_dropped_frames_total",
			Help:      "Inbound frames dropped by reason",
		}, []string{"reason"}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foodlink",
			Name:      "transfers_total",
			Help:      "Committed transfers delivered to dashboards",
		}),
	}
	m.registry.MustRegister(
		m.connections,
		m.frames,
		m.dropped,
		m.transfers,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) connected(delta float64) {
	if m != nil {
		m.connections.Add(delta)
	}
}

func (m *Metrics) received(kind model.EventKind) {
	if m != nil {
		m.frames.WithLabelValues("in", string(kind)).Inc()
	}
}

func (m *Metrics) sent(kind model.EventKind) {
	if m != nil {
		m.frames.WithLabelValues("out", string(kind)).Inc()
	}
}

func (m *Metrics) drop(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) delivered(n int) {
	if m != nil {
		m.transfers.Add(float64(n))
	}
}
