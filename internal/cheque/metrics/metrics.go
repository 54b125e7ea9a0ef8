package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for record lookups on the api tier.
type Metrics struct {
	// Store fetch latency by result
	FetchLatency *prometheus.HistogramVec

	// Lookup responses by result
	LookupResults *prometheus.CounterVec

	// Credential rejections by reason
	AuthRejections *prometheus.CounterVec
}

// New registers cheque lookup metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cheque_record_fetch_duration_seconds",
			Help:    "Duration of record store fetches by result",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		}, []string{"result"}), // result: "found", "not_found", "error", "timeout"

		LookupResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_lookups_total",
			Help: "Total cheque lookup responses by result",
		}, []string{"result"}),

		AuthRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_credential_rejections_total",
			Help: "Total inter-tier credential rejections by reason",
		}, []string{"reason"}),
	}
}

// ObserveFetch records the duration and result of one store fetch.
func (m *Metrics) ObserveFetch(result string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(result).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementLookup(result string) {
	if m != nil {
		m.LookupResults.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementAuthRejection(reason string) {
	if m != nil {
		m.AuthRejections.WithLabelValues(reason).Inc()
	}
}
