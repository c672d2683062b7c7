// Package service provides the chat session state machine.
package service

import (
	"strings"
	"time"

	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/internal/store"
)

const (
	// WelcomeMessageID identifies the greeting of the unsaved welcome buffer.
	WelcomeMessageID = "welcome"
	// WelcomeMessage greets the user before any conversation exists.
	WelcomeMessage = "Hello! I'm mChat AI, your intelligent assistant. How can I help you today?"
	// ConversationGreeting seeds every new conversation.
	ConversationGreeting = "Hello! I'm ready to help you with anything you need. What would you like to discuss?"
)

// conversation is the registry's record of one conversation.
type conversation struct {
	id        string
	title     string
	createdAt time.Time
	updatedAt time.Time
	messages  *store.MessageStore
}

func (c *conversation) touch(msg model.Message) {
	if msg.Timestamp.After(c.updatedAt) {
		c.updatedAt = msg.Timestamp
	}
}

func (c *conversation) snapshot() model.Conversation {
	return model.Conversation{
		ID:        c.id,
		Title:     c.title,
		Messages:  c.messages.All(),
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

func (c *conversation) matches(filter string) bool {
	if filter == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.title), filter) {
		return true
	}
	for _, m := range c.messages.All() {
		if strings.Contains(strings.ToLower(m.Content), filter) {
			return true
		}
	}
	return false
}

// target is where a send writes: the conversation active at call time, or
// the welcome buffer when none is.
type target struct {
	conversationID string
	messages       *store.MessageStore
}

// Registry holds the conversations of one session and tracks which one is
// active. It is not safe for concurrent use; Session serialises access.
type Registry struct {
	clock Clock
	newID func() string

	// Most recently created first.
	conversations []*conversation
	byID          map[string]*conversation
	active        *conversation
	welcome       *store.MessageStore
}

// NewRegistry creates an empty registry whose active view is the welcome
// buffer.
func NewRegistry(clock Clock, newID func() string) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	if newID == nil {
		newID = NewID
	}
	return &Registry{
		clock: clock,
		newID: newID,
		byID:  make(map[string]*conversation),
		welcome: store.New(nil, model.Message{
			ID:        WelcomeMessageID,
			Content:   WelcomeMessage,
			Role:      model.RoleAssistant,
			Timestamp: clock.Now(),
		}),
	}
}

// CreateConversation starts a new conversation seeded with a greeting,
// puts it at the front of the list, and makes it active.
func (r *Registry) CreateConversation() model.Conversation {
	conv := r.add(model.DefaultConversationTitle)
	conv.messages.Append(model.Message{
		ID:        "welcome-" + conv.id,
		Content:   ConversationGreeting,
		Role:      model.RoleAssistant,
		Timestamp: conv.createdAt,
	})
	return conv.snapshot()
}

// LoadConversation adds a conversation holding a copy of messages, puts it
// at the front of the list, and makes it active. Messages get fresh ids so
// they stay unique within the session; updatedAt is the newest timestamp.
func (r *Registry) LoadConversation(title string, messages []model.Message) model.Conversation {
	if strings.TrimSpace(title) == "" {
		title = model.DefaultConversationTitle
	}
	conv := r.add(title)

	loaded := make([]model.Message, len(messages))
	for i, m := range messages {
		m.ID = r.newID()
		loaded[i] = m
		conv.touch(m)
	}
	conv.messages.Replace(loaded)

	return conv.snapshot()
}

func (r *Registry) add(title string) *conversation {
	now := r.clock.Now()
	conv := &conversation{
		id:        r.newID(),
		title:     title,
		createdAt: now,
		updatedAt: now,
	}
	conv.messages = store.New(conv.touch)

	r.conversations = append([]*conversation{conv}, r.conversations...)
	r.byID[conv.id] = conv
	r.active = conv
	return conv
}

// SelectConversation makes the conversation with the given id active.
func (r *Registry) SelectConversation(id string) error {
	conv, ok := r.byID[id]
	if !ok {
		return ErrConversationNotFound
	}
	r.active = conv
	return nil
}

// Get returns a snapshot of the conversation with the given id.
func (r *Registry) Get(id string) (model.Conversation, error) {
	conv, ok := r.byID[id]
	if !ok {
		return model.Conversation{}, ErrConversationNotFound
	}
	return conv.snapshot(), nil
}

// List returns snapshots of all conversations, most recently created first.
func (r *Registry) List() []model.Conversation {
	out := make([]model.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, c.snapshot())
	}
	return out
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	return len(r.conversations)
}

// ActiveID returns the id of the active conversation, or "" while the
// welcome buffer is shown.
func (r *Registry) ActiveID() string {
	if r.active == nil {
		return ""
	}
	return r.active.id
}

// ActiveMessages returns the messages of the active view.
func (r *Registry) ActiveMessages() []model.Message {
	return r.current().messages.All()
}

// ListGrouped filters conversations by title or message content and groups
// the survivors by how recently they were updated.
func (r *Registry) ListGrouped(filter string, now time.Time) []model.ConversationGroup {
	filter = strings.ToLower(filter)

	var matched []model.Conversation
	for _, c := range r.conversations {
		if c.matches(filter) {
			matched = append(matched, c.snapshot())
		}
	}
	return GroupByDate(matched, now)
}

func (r *Registry) current() target {
	if r.active == nil {
		return target{messages: r.welcome}
	}
	return target{conversationID: r.active.id, messages: r.active.messages}
}

// GroupByDate buckets conversations into Today, Yesterday, Last 7 days and
// Older using calendar days in now's location. Empty buckets are omitted and
// each bucket keeps the input order.
func GroupByDate(conversations []model.Conversation, now time.Time) []model.ConversationGroup {
	buckets := make(map[model.GroupLabel][]model.Conversation, len(model.GroupOrder))
	for _, c := range conversations {
		label := DateGroup(c.UpdatedAt, now)
		buckets[label] = append(buckets[label], c)
	}

	groups := make([]model.ConversationGroup, 0, len(buckets))
	for _, label := range model.GroupOrder {
		if convs := buckets[label]; len(convs) > 0 {
			groups = append(groups, model.ConversationGroup{Label: label, Conversations: convs})
		}
	}
	return groups
}

// DateGroup returns the bucket for a conversation updated at updated.
func DateGroup(updated, now time.Time) model.GroupLabel {
	loc := now.Location()
	today := startOfDay(now)
	day := startOfDay(updated.In(loc))

	switch {
	case day.Equal(today):
		return model.GroupToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return model.GroupYesterday
	case !updated.Before(now.Add(-7 * 24 * time.Hour)):
		return model.GroupLastWeek
	default:
		return model.GroupOlder
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
