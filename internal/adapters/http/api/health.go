package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/battpredict/pkg/metrics"
)

const healthMessage = "Server is running and model is loaded"

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /health requests. The server only listens once the
// model is loaded, so reaching this handler implies a loaded model.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Message: healthMessage})
}

// MetricsHandler serves the registry behind m.
func MetricsHandler(m *metrics.Manager) http.HandlerFunc {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP
}
