// Package api provides the HTTP handlers for the meetrooms API
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse represents the response for health check endpoints
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler serves the Kubernetes probes
type HealthHandler struct {
	store Pinger
	log   *slog.Logger
}

// NewHealthHandler creates a health handler that checks store for readiness
func NewHealthHandler(store Pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

// Live handles Kubernetes liveness probe requests
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

// Ready handles Kubernetes readiness probe requests. The service is only
// ready while the room store answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "DOWN"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}
