package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/mchat/internal/model"
)

const (
	// StreamName is the name of the session event stream.
	StreamName = "MCHAT"

	// SubjectPrefix is the prefix for all session event subjects.
	SubjectPrefix = "mchat"

	// noConversation stands in for the conversation token of events raised
	// before any conversation exists.
	noConversation = "none"

	defaultReplayLimit = 50
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	maxAge time.Duration
}

// NewStreamManager creates a new stream manager. Events older than maxAge
// are discarded by the server.
func NewStreamManager(client *Client, maxAge time.Duration) *StreamManager {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &StreamManager{client: client, maxAge: maxAge}
}

// StreamConfig returns the configuration of the event stream. Sessions live
// in memory, so the feed does too.
func (m *StreamManager) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      m.maxAge,
		MaxBytes:    64 * 1024 * 1024,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "mChat session events",
	}
}

// EnsureStream ensures the event stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	if _, err := m.client.JetStream().CreateOrUpdateStream(ctx, m.StreamConfig()); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(userID, conversationID string, eventType model.EventType) string {
	if conversationID == "" {
		conversationID = noConversation
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, token(userID), token(conversationID), eventType)
}

// UserFilter returns the filter subject for all events of a user.
func UserFilter(userID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, token(userID))
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishEvent publishes an event to JetStream. It implements the session
// event publisher contract.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.SessionEvent) error {
	subject := EventSubject(event.UserID, event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit of the user's events, oldest first,
// starting after the given stream sequence. It also returns the sequence of
// the last event read.
func (m *StreamManager) RecentEvents(ctx context.Context, userID string, afterSequence uint64, limit int) ([]model.SessionEvent, uint64, error) {
	if limit <= 0 {
		limit = defaultReplayLimit
	}

	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{UserFilter(userID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create consumer: %w", err)
	}

	maxWait := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < maxWait {
			maxWait = left
		}
	}
	if maxWait < time.Second {
		maxWait = time.Second
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	var (
		events       []model.SessionEvent
		lastSequence = afterSequence
	)
	for msg := range batch.Messages() {
		var event model.SessionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, nil
}
