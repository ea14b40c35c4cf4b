package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an http.Handler serving DefaultRegistry in the
// Prometheus exposition format, for mounting at /metrics on whatever
// http.ServeMux a deployment already runs for health checks.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
