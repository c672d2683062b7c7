package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventConversationCreated  EventType = "conversation_created"
	EventConversationSelected EventType = "conversation_selected"
	EventMessageAppended      EventType = "message_appended"
	EventGenerationStarted    EventType = "generation_started"
	EventGenerationFinished   EventType = "generation_finished"
)

// SessionEvent describes a state transition observed by subscribers.
type SessionEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Message        *Message  `json:"message,omitempty"`
	IsGenerating   bool      `json:"is_generating"`
	CreatedAt      time.Time `json:"created_at"`
}
