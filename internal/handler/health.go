package handler

import (
	"net/http"
)

// ConnectionChecker reports whether a backing connection is up.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	feed ConnectionChecker
}

// NewHealthHandler creates a new health handler. A nil feed means the event
// feed is disabled and does not gate readiness.
func NewHealthHandler(feed ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		feed: feed,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.feed != nil && !h.feed.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
