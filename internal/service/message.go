package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/generator"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/metrics"
)

// Pending is a send whose assistant reply has not necessarily arrived yet.
type Pending struct {
	// ConversationID is the conversation the exchange belongs to, "" for the
	// welcome buffer.
	ConversationID string
	// UserMessage is the message appended synchronously by SendMessage.
	UserMessage model.Message

	done  chan struct{}
	reply model.Message
}

func newPending(conversationID string, userMsg model.Message) *Pending {
	return &Pending{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		done:           make(chan struct{}),
	}
}

// Done is closed once the reply has been appended.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Reply returns the assistant message if it has arrived.
func (p *Pending) Reply() (model.Message, bool) {
	select {
	case <-p.done:
		return p.reply, true
	default:
		return model.Message{}, false
	}
}

// Wait blocks until the reply arrives or ctx ends. Abandoning the wait does
// not cancel the generation.
func (p *Pending) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-p.done:
		return p.reply, nil
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

func (p *Pending) resolve(reply model.Message) {
	p.reply = reply
	close(p.done)
}

// SendMessage appends a user message to the active view and schedules the
// assistant reply.
//
// The user message is visible before SendMessage returns. The reply is
// appended after the simulated thinking time to the conversation that was
// active when SendMessage was called, even if another conversation has been
// selected since. While a reply is pending further sends fail with ErrBusy
// and change nothing. The delay cannot be cancelled; ctx only scopes tracing
// and event publishing.
func (s *Session) SendMessage(ctx context.Context, text string) (*Pending, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		metrics.SendsRejectedTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyMessage
	}

	ctx, span := tracer.Start(ctx, "Session.SendMessage")
	defer span.End()

	s.mu.Lock()
	if s.state != model.StateIdle {
		s.mu.Unlock()
		metrics.SendsRejectedTotal.WithLabelValues("busy").Inc()
		s.logger.Debug("send rejected while generating")
		return nil, ErrBusy
	}

	s.state = model.StateSending
	dest := s.registry.current()
	userMsg := s.newMessage(model.RoleUser, content)
	dest.messages.Append(userMsg)
	s.state = model.StateGenerating
	s.inflight.Add(1)
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	metrics.GenerationsInFlight.Inc()
	span.SetAttributes(attribute.String("conversation_id", dest.conversationID))

	delay := s.opts.ReplyDelay.Pick(s.opts.Random.Float64())
	pending := newPending(dest.conversationID, userMsg)

	s.publish(ctx, model.EventMessageAppended, dest.conversationID, &userMsg, true)
	s.publish(ctx, model.EventGenerationStarted, dest.conversationID, nil, true)

	s.logger.Debug("generating reply",
		zap.String("conversation_id", dest.conversationID),
		zap.Duration("delay", delay),
	)

	go s.generate(context.WithoutCancel(ctx), dest, content, delay, pending)

	return pending, nil
}

func (s *Session) generate(ctx context.Context, dest target, userText string, delay time.Duration, pending *Pending) {
	defer s.inflight.Done()
	defer metrics.GenerationsInFlight.Dec()

	ctx, span := tracer.Start(ctx, "Session.generate")
	defer span.End()
	span.SetAttributes(attribute.Int64("delay_ms", delay.Milliseconds()))

	start := s.opts.Clock.Now()
	<-s.opts.Clock.After(delay)

	topic := generator.Classify(userText)
	content := generator.Reply(userText, s.opts.Random.Intn(len(generator.LeadIns)))

	s.mu.Lock()
	reply := s.newMessage(model.RoleAssistant, content)
	dest.messages.Append(reply)
	s.state = model.StateIdle
	s.pubMu.Lock()
	s.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordGeneration(string(topic), s.opts.Clock.Now().Sub(start).Seconds())

	s.publish(ctx, model.EventMessageAppended, dest.conversationID, &reply, false)
	s.publish(ctx, model.EventGenerationFinished, dest.conversationID, nil, false)
	s.pubMu.Unlock()

	pending.resolve(reply)
}

// newMessage must be called with s.mu held.
func (s *Session) newMessage(role model.Role, content string) model.Message {
	return model.Message{
		ID:        s.opts.NewID(),
		Content:   content,
		Role:      role,
		Timestamp: s.opts.Clock.Now(),
	}
}
