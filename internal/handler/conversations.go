// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

const previewLength = 80

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	sessions *service.Manager
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(sessions *service.Manager, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		sessions: sessions,
		logger:   log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conv := sess.CreateConversation(r.Context())
	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/v1/conversations
// Supports ?q= to filter by title or message content.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	query := r.URL.Query().Get("q")
	if err := middleware.ValidateSearchQuery(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	activeID := sess.ActiveConversationID()
	resp := &model.ListConversationsResponse{
		Groups:   []model.GroupedSummaries{},
		ActiveID: activeID,
	}
	for _, group := range sess.ListGrouped(query) {
		summaries := make([]model.ConversationSummary, 0, len(group.Conversations))
		for _, conv := range group.Conversations {
			summaries = append(summaries, summarize(conv, activeID))
		}
		resp.Groups = append(resp.Groups, model.GroupedSummaries{
			Label:         group.Label,
			Conversations: summaries,
		})
		resp.Total += len(summaries)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Load handles POST /api/v1/conversations/load
// The body is a conversation document as produced by Export.
func (h *ConversationHandler) Load(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req model.LoadConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, m := range req.Messages {
		if err := middleware.ValidateMessageContent(m.Content); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conv, err := sess.LoadConversation(r.Context(), req.Title, req.Messages)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, conversationID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	conv, err := sess.Conversation(conversationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Select handles POST /api/v1/conversations/:id/select
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	sess, conversationID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := sess.SelectConversation(r.Context(), conversationID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		ConversationID: conversationID,
		Messages:       sess.ActiveMessages(),
		IsGenerating:   sess.IsGenerating(),
	})
}

// Export handles GET /api/v1/conversations/:id/export
func (h *ConversationHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess, conversationID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	blob, err := sess.ExportConversation(conversationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeDownload(w, blob)
}

// Save handles POST /api/v1/conversations/:id/export
// The export is handed to the server-side exporter.
func (h *ConversationHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess, conversationID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	blob, err := sess.SaveConversation(r.Context(), conversationID)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			requestLogger(h.logger, r).Error("failed to save conversation export",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": blob.Name})
}

func (h *ConversationHandler) resolve(w http.ResponseWriter, r *http.Request) (*service.Session, string, bool) {
	conversationID := chi.URLParam(r, "id")
	// Ids are always UUIDs, so a malformed one names no conversation.
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeServiceError(w, service.ErrConversationNotFound)
		return nil, "", false
	}

	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return nil, "", false
	}
	return sess, conversationID, true
}

func summarize(conv model.Conversation, activeID string) model.ConversationSummary {
	summary := model.ConversationSummary{
		ID:           conv.ID,
		Title:        conv.Title,
		MessageCount: len(conv.Messages),
		Active:       conv.ID == activeID,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
	if last := conv.LastMessage(); last != nil {
		summary.Preview = preview(last.Content)
	}
	return summary
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
