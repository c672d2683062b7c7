package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/auth"
	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

// AuthHandler handles sign-in endpoints.
type AuthHandler struct {
	gate     *auth.Gate
	sessions *service.Manager
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(gate *auth.Gate, sessions *service.Manager, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		gate:     gate,
		sessions: sessions,
		logger:   log,
	}
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req model.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	identity, token, err := h.gate.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("sign in failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.AuthResponse{User: *identity, Token: token})
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, err := range []error{
		middleware.ValidateEmail(req.Email),
		middleware.ValidatePassword(req.Password),
		middleware.ValidateName(req.Name),
	} {
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	identity, token, err := h.gate.SignUp(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Info("sign up failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	h.logger.Info("account created", zap.String("user_id", identity.ID))
	writeJSON(w, http.StatusCreated, &model.AuthResponse{User: *identity, Token: token})
}

// SignOut handles POST /api/v1/auth/signout
// Only the caller's token is revoked; the user's chat session is discarded
// with it.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Revoke(middleware.GetToken(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	h.sessions.End(middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeServiceError(w, service.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    identity,
		"initial": identity.Initial(),
	})
}
