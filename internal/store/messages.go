// Package store holds the ordered message history of a conversation.
package store

import (
	"github.com/capitalize-ai/mchat/internal/model"
)

// AppendHook is called after every append with the appended message.
type AppendHook func(msg model.Message)

// MessageStore is an append-only, insertion-ordered list of messages.
//
// A MessageStore is not safe for concurrent use; the owning session
// serialises access.
type MessageStore struct {
	messages []model.Message
	onAppend AppendHook
}

// New creates a message store. onAppend may be nil for stores that have no
// owning conversation.
func New(onAppend AppendHook, seed ...model.Message) *MessageStore {
	s := &MessageStore{onAppend: onAppend}
	s.messages = append(s.messages, seed...)
	return s
}

// Append adds msg to the end of the store.
func (s *MessageStore) Append(msg model.Message) {
	s.messages = append(s.messages, msg)
	if s.onAppend != nil {
		s.onAppend(msg)
	}
}

// All returns a copy of the messages in append order.
func (s *MessageStore) All() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Replace swaps the whole history, used when loading a conversation. It does
// not call the append hook.
func (s *MessageStore) Replace(messages []model.Message) {
	s.messages = make([]model.Message, len(messages))
	copy(s.messages, messages)
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	return len(s.messages)
}

// Find returns the message with the given id.
func (s *MessageStore) Find(id string) (model.Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}
