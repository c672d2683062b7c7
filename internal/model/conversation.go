// Package model defines data structures for the chat session service.
package model

import (
	"time"
)

// DefaultConversationTitle is the title every new conversation starts with.
const DefaultConversationTitle = "New Chat"

// Conversation represents a titled, timestamped message thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastMessage returns the most recent message, or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// LoadConversationRequest loads a saved conversation, such as an exported
// chat document, as a new conversation.
type LoadConversationRequest struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// ConversationSummary is the sidebar view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GroupLabel names a date bucket in the conversation list.
type GroupLabel string

const (
	GroupToday     GroupLabel = "Today"
	GroupYesterday GroupLabel = "Yesterday"
	GroupLastWeek  GroupLabel = "Last 7 days"
	GroupOlder     GroupLabel = "Older"
)

// GroupOrder is the display order of date buckets.
var GroupOrder = []GroupLabel{GroupToday, GroupYesterday, GroupLastWeek, GroupOlder}

// ConversationGroup is one date bucket with its conversations in registry order.
type ConversationGroup struct {
	Label         GroupLabel     `json:"label"`
	Conversations []Conversation `json:"conversations"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Groups   []GroupedSummaries `json:"groups"`
	Total    int                `json:"total"`
	ActiveID string             `json:"active_id,omitempty"`
}

// GroupedSummaries is a date bucket rendered as summaries.
type GroupedSummaries struct {
	Label         GroupLabel            `json:"label"`
	Conversations []ConversationSummary `json:"conversations"`
}
