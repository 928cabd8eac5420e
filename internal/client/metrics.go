package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one or more managers. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	framesTotal       *prometheus.CounterVec
	protocolErrors    *prometheus.CounterVec
	pongsSent         prometheus.Counter
	connectsTotal     prometheus.Counter
	reconnectAttempts prometheus.Counter
	state             prometheus.Gauge
}

// NewMetrics registers the collectors on reg under the given namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "nowplaying"
	}
	factory := promauto.With(reg)

	return &Metrics{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_total",
			Help:      "Inbound frames by classified kind",
		}, []string{"kind"}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "protocol_errors_total",
			Help:      "Protocol anomalies reported to the status sink",
		}, []string{"type"}),

		pongsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "pongs_sent_total",
			Help:      "Heartbeat replies written to the socket",
		}),

		connectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connects_total",
			Help:      "Successful socket opens",
		}),

		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnect_attempts_total",
			Help:      "Abnormal closures that scheduled a reconnect",
		}),

		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 open, 3 closing)",
		}),
	}
}

func (m *Metrics) frame(kind string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) protocolError(typ string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(typ).Inc()
}

func (m *Metrics) pong() {
	if m == nil {
		return
	}
	m.pongsSent.Inc()
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connectsTotal.Inc()
}

func (m *Metrics) reconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
