package promexporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves the metrics of one or more clients on its own registry.
type Exporter struct {
	registry *prometheus.Registry
}

func NewExporter() *Exporter {
	return &Exporter{registry: prometheus.NewRegistry()}
}

// Register adds the metrics of a client, labeled with name.
func (e *Exporter) Register(source StatsSource, name string) error {
	return e.registry.Register(NewCollector(source, name))
}

// Registry returns the underlying registry, to add other collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ListenAndServe serves /metrics on addr until the server fails.
func (e *Exporter) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	return http.ListenAndServe(addr, mux)
}
