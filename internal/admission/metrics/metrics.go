package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	Delay       *prometheus.HistogramVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cheque_admission_decisions_total",
			Help: "Total admission decisions by route class and state",
		}, []string{"class", "state"}),
		Delay: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cheque_admission_delay_seconds",
			Help:    "Progressive delay applied before admitted requests",
			Buckets: []float64{0.5, 1, 1.5, 2, 3, 4, 5},
		}, []string{"class"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cheque_admission_store_errors_total",
			Help: "Total admission checks that failed open on a store error",
		}),
	}
}

func (m *Metrics) IncrementDecision(class, state string) {
	if m != nil {
		m.Decisions.WithLabelValues(class, state).Inc()
	}
}

func (m *Metrics) ObserveDelay(class string, d time.Duration) {
	if m != nil {
		m.Delay.WithLabelValues(class).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
