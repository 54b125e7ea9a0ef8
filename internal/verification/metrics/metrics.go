package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification requests on the backend tier.
type Metrics struct {
	// Verification outcomes by result
	Outcomes *prometheus.CounterVec

	// End-to-end verification latency, gateway call included
	Duration *prometheus.HistogramVec
}

// New registers verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_verifications_total",
			Help: "Total verification requests by result",
		}, []string{"result"}), // result: "matched", "mismatch", "not_found", "invalid", "upstream_error", "timeout"

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cheque_verification_duration_seconds",
			Help:    "Duration of verification requests by result",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementOutcome(result string) {
	if m != nil {
		m.Outcomes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveDuration(result string, d time.Duration) {
	if m != nil {
		m.Duration.WithLabelValues(result).Observe(d.Seconds())
	}
}
