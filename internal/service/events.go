package service

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/mchat/internal/model"
)

// EventPublisher receives session events after each state transition.
// Events of one session are delivered one at a time in state-change order.
// PublishEvent must not call back into the publishing session.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.SessionEvent) error
}

// Publishers fans an event out to several publishers.
type Publishers []EventPublisher

// PublishEvent delivers event to every publisher and joins their errors.
func (p Publishers) PublishEvent(ctx context.Context, event *model.SessionEvent) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.PublishEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster delivers session events to in-process subscribers, keyed by
// user. Slow subscribers drop events rather than stall the session.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[chan model.SessionEvent]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold up to
// buffer events.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broadcaster{
		subs:   make(map[string]map[chan model.SessionEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for events of userID. The returned cancel func must be
// called to release the subscription.
func (b *Broadcaster) Subscribe(userID string) (<-chan model.SessionEvent, func()) {
	ch := make(chan model.SessionEvent, b.buffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan model.SessionEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Broadcaster) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// PublishEvent implements EventPublisher.
func (b *Broadcaster) PublishEvent(_ context.Context, event *model.SessionEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.UserID] {
		select {
		case ch <- *event:
		default:
		}
	}
	return nil
}
