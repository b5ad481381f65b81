package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jgirmay/pyguide/internal/common/health"
)

// HealthHandler manages health check endpoints on the ops listener
type HealthHandler struct {
	checker *health.HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
	}
}

// RegisterRoutes mounts /health, /health/readiness, /health/liveness, /health/metrics and /health/detailed.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/health", func(hr chi.Router) {
		hr.Get("/", h.Health)
		hr.Get("/readiness", h.Readiness)
		hr.Get("/liveness", h.Liveness)
		hr.Get("/metrics", h.Metrics)
		hr.Get("/detailed", h.Detailed)
	})
}

// Health returns comprehensive health status
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Check(r.Context())

	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status)
}

// Readiness returns readiness status
// GET /health/readiness
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.checker.IsReady(r.Context()) {
		respondJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}

	respondJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
}

// Liveness returns liveness status
// GET /health/liveness
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"alive": h.checker.IsAlive()})
}

// Metrics returns current system metrics
// GET /health/metrics
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.checker.GetMetrics())
}

// Detailed returns detailed health information
// GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Check(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status.Status,
		"timestamp":   status.Timestamp,
		"version":     status.Version,
		"checks":      status.Checks,
		"metrics":     h.checker.GetMetrics(),
		"duration_ms": status.Duration,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
