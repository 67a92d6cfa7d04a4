package api

import (
	"net/http"

	"github.com/okian/comet/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConfigReporter reports whether the points service is usable.
type ConfigReporter interface {
	PointsConfigured() bool
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	config ConfigReporter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(config ConfigReporter) *HealthHandler {
	return &HealthHandler{config: config}
}

type healthResponse struct {
	OK               bool `json:"ok"`
	PointsConfigured bool `json:"pointsConfigured"`
}

// HandleHealth handles GET /health requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{OK: true, PointsConfigured: h.config.PointsConfigured()})
}

// NewMetricsHandler serves the service's Prometheus registry.
func NewMetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
