package nats

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/mchat/internal/model"
)

func TestEventSubject(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		convID  string
		evType  model.EventType
		subject string
	}{
		{
			name:    "conversation event",
			userID:  "1",
			convID:  "0190f6a2-7c3b-7d2e-9a4b-1c2d3e4f5a6b",
			evType:  model.EventMessageAppended,
			subject: "mchat.1.0190f6a2-7c3b-7d2e-9a4b-1c2d3e4f5a6b.message_appended",
		},
		{
			name:    "no conversation yet",
			userID:  "1",
			evType:  model.EventGenerationStarted,
			subject: "mchat.1.none.generation_started",
		},
		{
			name:    "wildcards escaped",
			userID:  "a.b*c>",
			convID:  "x y",
			evType:  model.EventConversationCreated,
			subject: "mchat.a_b_c_.x_y.conversation_created",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.subject, EventSubject(tt.userID, tt.convID, tt.evType))
		})
	}
}

func TestUserFilter(t *testing.T) {
	assert.Equal(t, "mchat.1.>", UserFilter("1"))
	assert.Equal(t, "mchat.a_b.>", UserFilter("a.b"))
}

func TestStreamConfig(t *testing.T) {
	cfg := NewStreamManager(nil, 0).StreamConfig()

	assert.Equal(t, StreamName, cfg.Name)
	assert.Equal(t, []string{"mchat.>"}, cfg.Subjects)
	assert.Equal(t, jetstream.MemoryStorage, cfg.Storage)
	assert.Equal(t, 24*time.Hour, cfg.MaxAge)
}

func TestClient_NilIsDisconnected(t *testing.T) {
	var c *Client
	assert.False(t, c.IsConnected())
}
