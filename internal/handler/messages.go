package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

// MessageHandler handles message endpoints. Messages always address the
// active view of the caller's session.
type MessageHandler struct {
	sessions    *service.Manager
	logger      *logger.Logger
	waitTimeout time.Duration
}

// NewMessageHandler creates a new message handler. Sends with wait set give
// up waiting for the reply after waitTimeout.
func NewMessageHandler(sessions *service.Manager, log *logger.Logger, waitTimeout time.Duration) *MessageHandler {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &MessageHandler{
		sessions:    sessions,
		logger:      log,
		waitTimeout: waitTimeout,
	}
}

// List handles GET /api/v1/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		ConversationID: snap.ActiveConversationID,
		Messages:       snap.Messages,
		IsGenerating:   snap.IsGenerating,
	})
}

// Send handles POST /api/v1/messages
// Responds 202 with the user message, or 201 with the reply as well when the
// request sets wait.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pending, err := sess.SendMessage(r.Context(), req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.respondPending(w, r, pending, req.Wait)
}

// Dictate handles POST /api/v1/messages/dictate
// The transcript is appended to the optional draft and returned unsent.
func (h *MessageHandler) Dictate(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req model.DictateRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := sess.Dictate(r.Context(), req.Draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := middleware.ValidateMessageContent(text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &model.DictateResponse{Text: text})
}

// Templates handles GET /api/v1/templates
func (h *MessageHandler) Templates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &model.TemplatesResponse{Templates: model.PromptTemplates})
}

func (h *MessageHandler) respondPending(w http.ResponseWriter, r *http.Request, pending *service.Pending, wait bool) {
	resp := &model.SendMessageResponse{
		ConversationID: pending.ConversationID,
		Message:        &pending.UserMessage,
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()

	reply, err := pending.Wait(ctx)
	if err != nil {
		// The reply still lands; the caller can pick it up from the list.
		requestLogger(h.logger, r).Debug("stopped waiting for reply", zap.Error(err))
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	resp.Reply = &reply
	writeJSON(w, http.StatusCreated, resp)
}

// Export handles GET /api/v1/messages/:id/export
func (h *MessageHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess, messageID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	blob, err := sess.ExportMessage(messageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeDownload(w, blob)
}

// Save handles POST /api/v1/messages/:id/export
func (h *MessageHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess, messageID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	blob, err := sess.SaveMessage(r.Context(), messageID)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			requestLogger(h.logger, r).Error("failed to save message export",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": blob.Name})
}

// Speak handles POST /api/v1/messages/:id/speak
func (h *MessageHandler) Speak(w http.ResponseWriter, r *http.Request) {
	sess, messageID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := sess.ReadAloud(r.Context(), messageID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) resolve(w http.ResponseWriter, r *http.Request) (*service.Session, string, bool) {
	messageID := chi.URLParam(r, "id")
	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}

	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return nil, "", false
	}
	return sess, messageID, true
}
