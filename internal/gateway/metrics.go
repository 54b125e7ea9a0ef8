package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes calls from the backend tier into the api tier.
type Metrics struct {
	CallLatency *prometheus.HistogramVec
	Unsigned    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cheque_gateway_call_duration_seconds",
			Help:    "Duration of api tier calls by result kind",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
		Unsigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "cheque_gateway_unsigned_calls_total",
			Help: "Total api tier calls sent without a credential",
		}),
	}
}

func (m *Metrics) observe(kind Kind, d time.Duration) {
	if m != nil {
		m.CallLatency.WithLabelValues(kind.String()).Observe(d.Seconds())
	}
}

func (m *Metrics) incUnsigned() {
	if m != nil {
		m.Unsigned.Inc()
	}
}
