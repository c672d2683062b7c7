package handler

import (
	"net/http"

	"github.com/capitalize-ai/mchat/internal/service"
)

// SessionHandler exposes the caller's session state.
type SessionHandler struct {
	sessions *service.Manager
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Snapshot handles GET /api/v1/session
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Capabilities handles GET /api/v1/capabilities
func (h *SessionHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Capabilities())
}
