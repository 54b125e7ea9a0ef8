package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit emission.
type Metrics struct {
	Emitted     *prometheus.CounterVec
	SinkFailure *prometheus.CounterVec
}

// NewMetrics registers audit metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_audit_events_emitted_total",
			Help: "Total number of audit events emitted, by action",
		}, []string{"action"}),
		SinkFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_audit_sink_failures_total",
			Help: "Total number of audit sink write failures, by sink",
		}, []string{"sink"}),
	}
}

func (m *Metrics) incEmitted(action string) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(action).Inc()
}

func (m *Metrics) incSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.SinkFailure.WithLabelValues(sink).Inc()
}
