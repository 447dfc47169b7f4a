package api

import "net/http"

// HealthHandler answers liveness probes without touching the core.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /healthcheck requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeRaw(w, http.StatusOK, "text/plain; charset=utf-8", []byte("Live"))
}
