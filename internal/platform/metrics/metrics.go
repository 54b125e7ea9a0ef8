package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the per-process metrics registry. Feature packages register
// their collectors on it through NewX(reg) constructors.
type Registry struct {
	*prometheus.Registry
	BuildInfo *prometheus.GaugeVec
}

// New creates a registry with Go runtime and process collectors and a
// build info gauge for service.
func New(service, version string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	info := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "cheque_build_info",
		Help: "Build information for the running tier",
	}, []string{"service", "version"})
	info.WithLabelValues(service, version).Set(1)
	return &Registry{Registry: reg, BuildInfo: info}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
