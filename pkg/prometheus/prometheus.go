package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHandler exposes the default process collectors plus the given metric
// families.
func NewHandler(collectorSets ...[]prometheus.Collector) http.Handler {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, cs := range collectorSets {
		registry.MustRegister(cs...)
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
