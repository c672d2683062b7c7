package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/capitalize-ai/mchat/internal/auth"
	"github.com/capitalize-ai/mchat/internal/capability"
	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a domain error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, capability.ErrUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeDownload writes an export blob as an attachment.
func writeDownload(w http.ResponseWriter, blob capability.Blob) {
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// sessionFor returns the chat session of the request's identity.
func sessionFor(m *service.Manager, r *http.Request) (*service.Session, error) {
	return m.Start(service.IdentityFunc(func() *model.Identity {
		return middleware.GetIdentity(r.Context())
	}))
}

// requestLogger scopes log to the request's correlation id and user.
func requestLogger(log *logger.Logger, r *http.Request) *logger.Logger {
	ctx := r.Context()
	return log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))
}
