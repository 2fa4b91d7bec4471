package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/metrics"
)

var metricsRegistry = newMetricsRegistry()

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	return reg
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
