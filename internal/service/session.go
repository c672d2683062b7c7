package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/capability"
	"github.com/capitalize-ai/mchat/internal/export"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/logger"
	"github.com/capitalize-ai/mchat/pkg/metrics"
	"github.com/capitalize-ai/mchat/pkg/tracing"
)

var tracer trace.Tracer = tracing.Tracer("github.com/capitalize-ai/mchat/internal/service")

// Options configures a Session. Zero values select the production defaults.
type Options struct {
	Clock        Clock
	Random       Random
	NewID        func() string
	ReplyDelay   *ReplyDelay
	Publisher    EventPublisher
	Capabilities capability.Set
	Location     *time.Location
	Logger       *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Random == nil {
		o.Random = SystemRandom{}
	}
	if o.NewID == nil {
		o.NewID = NewID
	}
	if o.ReplyDelay == nil {
		d := DefaultReplyDelay
		o.ReplyDelay = &d
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = logger.Global()
	}
	return o
}

// Session is the chat session of one signed-in identity: its conversations,
// the active view and the send cycle. All state is guarded by one mutex, so
// there is a single writer; the reply timer runs on its own goroutine and
// takes the lock only to append the reply.
//
// Events of a transition are published while pubMu is held. pubMu is taken
// before mu is released, so subscribers see events in state-change order.
type Session struct {
	identity model.Identity
	opts     Options
	logger   *logger.Logger

	mu       sync.Mutex
	registry *Registry
	state    model.SessionState

	pubMu sync.Mutex

	inflight sync.WaitGroup
}

// NewSession creates a session showing the welcome buffer.
func NewSession(identity model.Identity, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		identity: identity,
		opts:     opts,
		logger:   opts.Logger.WithSession(identity.ID, identity.Email),
		registry: NewRegistry(opts.Clock, opts.NewID),
		state:    model.StateIdle,
	}
}

// Identity returns the identity the session belongs to.
func (s *Session) Identity() model.Identity {
	return s.identity
}

// State returns the current send-cycle state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsGenerating reports whether a reply is pending.
func (s *Session) IsGenerating() bool {
	return s.State() != model.StateIdle
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.SessionSnapshot{
		User:                 s.identity,
		ActiveConversationID: s.registry.ActiveID(),
		Messages:             s.registry.ActiveMessages(),
		IsGenerating:         s.state != model.StateIdle,
		State:                s.state,
		ConversationCount:    s.registry.Len(),
		Capabilities:         s.Capabilities(),
	}
}

// Capabilities reports which optional platform features are wired.
func (s *Session) Capabilities() model.Capabilities {
	return model.Capabilities{
		SpeechInput:  s.opts.Capabilities.SpeechInput != nil,
		SpeechOutput: s.opts.Capabilities.SpeechOutput != nil,
		Export:       s.opts.Capabilities.Exporter != nil,
	}
}

// CreateConversation starts a new conversation and makes it active.
func (s *Session) CreateConversation(ctx context.Context) model.Conversation {
	s.mu.Lock()
	conv := s.registry.CreateConversation()
	generating := s.state != model.StateIdle
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	s.publish(ctx, model.EventConversationCreated, conv.ID, nil, generating)

	return conv
}

// LoadConversation loads messages, such as a previously exported chat, as a
// new conversation and makes it active. Every message needs a known role and
// non-blank content.
func (s *Session) LoadConversation(ctx context.Context, title string, messages []model.Message) (model.Conversation, error) {
	if len(messages) == 0 {
		return model.Conversation{}, ErrEmptyConversation
	}
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
		default:
			return model.Conversation{}, ErrInvalidRole
		}
		if strings.TrimSpace(m.Content) == "" {
			return model.Conversation{}, ErrEmptyMessage
		}
	}

	s.mu.Lock()
	conv := s.registry.LoadConversation(title, messages)
	generating := s.state != model.StateIdle
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation loaded",
		zap.String("conversation_id", conv.ID),
		zap.Int("messages", len(conv.Messages)),
	)
	s.publish(ctx, model.EventConversationCreated, conv.ID, nil, generating)

	return conv, nil
}

// SelectConversation makes the conversation with the given id active.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if err := s.registry.SelectConversation(id); err != nil {
		s.mu.Unlock()
		return err
	}
	generating := s.state != model.StateIdle
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	s.publish(ctx, model.EventConversationSelected, id, nil, generating)
	return nil
}

// Conversation returns a snapshot of the conversation with the given id.
func (s *Session) Conversation(id string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(id)
}

// Conversations returns all conversations, most recently created first.
func (s *Session) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.List()
}

// ActiveConversationID returns the active conversation id, or "" while the
// welcome buffer is shown.
func (s *Session) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ActiveID()
}

// ActiveMessages returns the messages currently shown.
func (s *Session) ActiveMessages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ActiveMessages()
}

// ListGrouped returns conversations matching filter bucketed by date.
func (s *Session) ListGrouped(filter string) []model.ConversationGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ListGrouped(filter, s.opts.Clock.Now().In(s.opts.Location))
}

// Wait blocks until every in-flight reply has been appended.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// ExportConversation renders the conversation with the given id as JSON.
func (s *Session) ExportConversation(id string) (capability.Blob, error) {
	conv, err := s.Conversation(id)
	if err != nil {
		return capability.Blob{}, err
	}
	return export.Conversation(conv, s.opts.Clock.Now())
}

// ExportMessage renders a message of the active view as a text line.
func (s *Session) ExportMessage(id string) (capability.Blob, error) {
	msg, err := s.activeMessage(id)
	if err != nil {
		return capability.Blob{}, err
	}
	return export.Message(msg, s.opts.Location), nil
}

// SaveConversation hands the conversation export to the platform exporter.
func (s *Session) SaveConversation(ctx context.Context, id string) (capability.Blob, error) {
	exporter := s.opts.Capabilities.Exporter
	if exporter == nil {
		return capability.Blob{}, capability.ErrUnavailable
	}
	blob, err := s.ExportConversation(id)
	if err != nil {
		return capability.Blob{}, err
	}
	return blob, exporter.Export(ctx, blob)
}

// SaveMessage hands the message export to the platform exporter.
func (s *Session) SaveMessage(ctx context.Context, id string) (capability.Blob, error) {
	exporter := s.opts.Capabilities.Exporter
	if exporter == nil {
		return capability.Blob{}, capability.ErrUnavailable
	}
	blob, err := s.ExportMessage(id)
	if err != nil {
		return capability.Blob{}, err
	}
	return blob, exporter.Export(ctx, blob)
}

// ReadAloud speaks a message of the active view.
func (s *Session) ReadAloud(ctx context.Context, id string) error {
	out := s.opts.Capabilities.SpeechOutput
	if out == nil {
		return capability.ErrUnavailable
	}
	msg, err := s.activeMessage(id)
	if err != nil {
		return err
	}
	return out.Speak(ctx, msg.Content)
}

// Dictate listens for spoken input and returns draft with the transcript
// appended. Nothing is sent; the caller submits the text with SendMessage.
func (s *Session) Dictate(ctx context.Context, draft string) (string, error) {
	in := s.opts.Capabilities.SpeechInput
	if in == nil {
		return "", capability.ErrUnavailable
	}
	transcript, err := in.Listen(ctx)
	if err != nil {
		return "", err
	}
	return draft + transcript, nil
}

func (s *Session) activeMessage(id string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.registry.current().messages.Find(id)
	if !ok {
		return model.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

func (s *Session) publish(ctx context.Context, typ model.EventType, conversationID string, msg *model.Message, generating bool) {
	if s.opts.Publisher == nil {
		return
	}
	event := &model.SessionEvent{
		ID:             s.opts.NewID(),
		Type:           typ,
		UserID:         s.identity.ID,
		ConversationID: conversationID,
		Message:        msg,
		IsGenerating:   generating,
		CreatedAt:      s.opts.Clock.Now(),
	}
	if err := s.opts.Publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
