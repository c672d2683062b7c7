package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
	"github.com/capitalize-ai/mchat/pkg/metrics"
)

// Subscriber hands out per-user session event subscriptions.
type Subscriber interface {
	Subscribe(userID string) (<-chan model.SessionEvent, func())
}

// EventReader reads past session events from the event feed.
type EventReader interface {
	RecentEvents(ctx context.Context, userID string, afterSequence uint64, limit int) ([]model.SessionEvent, uint64, error)
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	sessions  *service.Manager
	events    Subscriber
	feed      EventReader
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. feed may be nil when the
// event feed is disabled.
func NewStreamHandler(sessions *service.Manager, events Subscriber, feed EventReader, log *logger.Logger, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		sessions:  sessions,
		events:    events,
		feed:      feed,
		logger:    log,
		heartbeat: heartbeat,
	}
}

// Stream handles GET /api/v1/stream
// The first event is a snapshot of the session, followed by live session
// events until the client disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := sessionFor(h.sessions, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	userID := sess.Identity().ID
	log := requestLogger(h.logger, r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The stream outlives the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("write deadline not adjustable", zap.Error(err))
	}

	// Subscribe before the snapshot so no transition is missed between them.
	events, cancel := h.events.Subscribe(userID)
	defer cancel()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	if err := sendSSEEvent(w, flusher, "snapshot", sess.Snapshot()); err != nil {
		log.Error("failed to send snapshot", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case event, open := <-events:
			if !open {
				return
			}
			if err := sendSSEEvent(w, flusher, string(event.Type), &event); err != nil {
				log.Warn("failed to send event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// eventsResponse is a page of past session events.
type eventsResponse struct {
	Events       []model.SessionEvent `json:"events"`
	LastSequence uint64               `json:"last_sequence"`
}

// Events handles GET /api/v1/events
// Supports ?after_sequence=N and ?limit=N for paging through the feed.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "event feed disabled")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeServiceError(w, service.ErrUnauthenticated)
		return
	}

	var afterSequence uint64
	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	events, last, err := h.feed.RecentEvents(r.Context(), userID, afterSequence, limit)
	if err != nil {
		requestLogger(h.logger, r).Error("failed to read events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if events == nil {
		events = []model.SessionEvent{}
	}

	writeJSON(w, http.StatusOK, &eventsResponse{Events: events, LastSequence: last})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
