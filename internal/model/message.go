package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents one turn in a conversation.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Role        Role      `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"isStreaming,omitempty"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
	// Wait blocks the request until the assistant reply has been appended.
	Wait bool `json:"wait,omitempty"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Message        *Message `json:"message"`
	Reply          *Message `json:"reply,omitempty"`
}

// DictateRequest carries the draft the transcript is appended to.
type DictateRequest struct {
	Draft string `json:"draft"`
}

// DictateResponse is the draft with the transcript appended.
type DictateResponse struct {
	Text string `json:"text"`
}

// ListMessagesResponse is the response for listing the active messages.
type ListMessagesResponse struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Messages       []Message `json:"messages"`
	IsGenerating   bool      `json:"is_generating"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
