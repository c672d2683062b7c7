package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mchat/internal/generator"
	"github.com/capitalize-ai/mchat/internal/model"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

func waitReply(t *testing.T, p *Pending) model.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := p.Wait(ctx)
	require.NoError(t, err)
	return reply
}

func waitForTimer(t *testing.T, clock *fakeClock) {
	t.Helper()
	require.Eventually(t, func() bool { return clock.waiting() == 1 }, 5*time.Second, time.Millisecond)
}

func TestSession_NewConversationScenario(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{})
	ctx := context.Background()

	conv := s.CreateConversation(ctx)
	require.Len(t, conv.Messages, 1)

	p, err := s.SendMessage(ctx, "hi")
	require.NoError(t, err)
	reply := waitReply(t, p)

	got, err := s.Conversation(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)

	assert.Equal(t, model.RoleAssistant, got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.Equal(t, model.RoleUser, got.Messages[1].Role)
	assert.Equal(t, model.RoleAssistant, got.Messages[2].Role)
	assert.Equal(t, generator.LeadIns[3]+" "+generator.GreetingContinuation, got.Messages[2].Content)
	assert.Equal(t, reply, got.Messages[2])
	assert.Equal(t, conv.ID, p.ConversationID)

	assert.Equal(t, model.StateIdle, s.State())
	assert.False(t, s.IsGenerating())
}

func TestSession_AppendOrderAndAlternation(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{})
	ctx := context.Background()
	s.CreateConversation(ctx)

	inputs := []string{"hello", "help me", "write a poem", "random musings", "code review"}
	for i, in := range inputs {
		before := len(s.ActiveMessages())
		p, err := s.SendMessage(ctx, in)
		require.NoError(t, err)
		waitReply(t, p)
		assert.Len(t, s.ActiveMessages(), before+2, "send %d", i)
	}

	msgs := s.ActiveMessages()
	require.Len(t, msgs, 1+2*len(inputs))
	for i, m := range msgs[1:] {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i+1)
	}

	// The last message is the newest reply.
	last := msgs[len(msgs)-1]
	assert.True(t, strings.HasSuffix(last.Content, generator.CodingContinuation))
}

func TestSession_UniqueIDsAndUpdatedAt(t *testing.T) {
	clock := newFakeClock(testStart)
	s := NewSession(testIdentity, Options{
		Clock:  clock,
		Random: fixedRandom{},
		Logger: logger.NewNop(),
	})
	ctx := context.Background()
	conv := s.CreateConversation(ctx)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		p, err := s.SendMessage(ctx, "message")
		require.NoError(t, err)
		waitReply(t, p)
	}
	got, err := s.Conversation(conv.ID)
	require.NoError(t, err)
	for _, m := range got.Messages {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}

	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, last.Timestamp, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestSession_RejectsEmptyMessage(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{})
	before := s.ActiveMessages()

	for _, text := range []string{"", "   ", "\n\t"} {
		p, err := s.SendMessage(context.Background(), text)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.ErrorIs(t, err, ErrValidation)
	}

	assert.Equal(t, before, s.ActiveMessages())
	assert.Equal(t, model.StateIdle, s.State())
	assert.Empty(t, clock.requested())
}

func TestSession_TrimsContent(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{})

	p, err := s.SendMessage(context.Background(), "  hello  ")
	require.NoError(t, err)
	waitReply(t, p)

	assert.Equal(t, "hello", p.UserMessage.Content)
}

func TestSession_BusyExclusion(t *testing.T) {
	clock := newFakeClock(testStart)
	clock.manual = true
	s := newTestSession(clock, Options{})
	ctx := context.Background()
	s.CreateConversation(ctx)

	p, err := s.SendMessage(ctx, "first")
	require.NoError(t, err)

	// The user message is visible before the delay elapses.
	msgs := s.ActiveMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, p.UserMessage, msgs[1])
	assert.True(t, s.IsGenerating())
	assert.Equal(t, model.StateGenerating, s.State())
	_, arrived := p.Reply()
	assert.False(t, arrived)

	second, err := s.SendMessage(ctx, "second")
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, s.ActiveMessages(), 2)
	assert.True(t, s.IsGenerating())

	waitForTimer(t, clock)
	clock.release()
	waitReply(t, p)

	assert.False(t, s.IsGenerating())
	assert.Len(t, s.ActiveMessages(), 3)

	// Sending works again once idle.
	clock.manual = false
	third, err := s.SendMessage(ctx, "third")
	require.NoError(t, err)
	waitReply(t, third)
	assert.Len(t, s.ActiveMessages(), 5)
}

func TestSession_ReplyLandsInConversationActiveAtSend(t *testing.T) {
	clock := newFakeClock(testStart)
	clock.manual = true
	s := newTestSession(clock, Options{})
	ctx := context.Background()

	a := s.CreateConversation(ctx)
	b := s.CreateConversation(ctx)
	require.NoError(t, s.SelectConversation(ctx, a.ID))

	p, err := s.SendMessage(ctx, "hello from A")
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ConversationID)

	// Switching while the reply is pending is allowed.
	require.NoError(t, s.SelectConversation(ctx, b.ID))
	assert.True(t, s.IsGenerating())

	waitForTimer(t, clock)
	clock.release()
	reply := waitReply(t, p)

	gotA, err := s.Conversation(a.ID)
	require.NoError(t, err)
	require.Len(t, gotA.Messages, 3)
	assert.Equal(t, reply, gotA.Messages[2])

	gotB, err := s.Conversation(b.ID)
	require.NoError(t, err)
	assert.Len(t, gotB.Messages, 1)

	assert.Equal(t, b.ID, s.ActiveConversationID())
	assert.Len(t, s.ActiveMessages(), 1)
}

func TestSession_WelcomeBuffer(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{})

	snap := s.Snapshot()
	assert.Empty(t, snap.ActiveConversationID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, WelcomeMessageID, snap.Messages[0].ID)

	p, err := s.SendMessage(context.Background(), "help")
	require.NoError(t, err)
	waitReply(t, p)

	assert.Empty(t, p.ConversationID)
	assert.Len(t, s.ActiveMessages(), 3)
	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ListGrouped(""))

	// Creating a conversation leaves the buffer behind.
	conv := s.CreateConversation(context.Background())
	assert.Equal(t, conv.ID, s.ActiveConversationID())
	assert.Len(t, s.ActiveMessages(), 1)
}

func TestSession_ReplyDelay(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{Random: fixedRandom{fraction: 0.25}})

	p, err := s.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	waitReply(t, p)

	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, clock.requested())
}

func TestReplyDelay_Pick(t *testing.T) {
	d := DefaultReplyDelay

	assert.Equal(t, time.Second, d.Pick(0))
	assert.Equal(t, 2*time.Second, d.Pick(0.5))
	assert.Less(t, d.Pick(0.9999), 3*time.Second)

	assert.Equal(t, time.Duration(0), ReplyDelay{}.Pick(0.7))
	assert.Equal(t, 5*time.Millisecond, ReplyDelay{Min: 5 * time.Millisecond}.Pick(0.7))
}

func TestSession_DeterministicZeroDelay(t *testing.T) {
	clock := newFakeClock(testStart)
	s := newTestSession(clock, Options{ReplyDelay: &ReplyDelay{}})

	p, err := s.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	waitReply(t, p)

	assert.Equal(t, []time.Duration{0}, clock.requested())
}

func TestSession_EventsPublished(t *testing.T) {
	clock := newFakeClock(testStart)
	b := NewBroadcaster(16)
	events, cancel := b.Subscribe(testIdentity.ID)
	defer cancel()

	s := newTestSession(clock, Options{Publisher: b})
	ctx := context.Background()
	conv := s.CreateConversation(ctx)

	p, err := s.SendMessage(ctx, "hi")
	require.NoError(t, err)
	waitReply(t, p)

	want := []model.EventType{
		model.EventConversationCreated,
		model.EventMessageAppended,
		model.EventGenerationStarted,
		model.EventMessageAppended,
		model.EventGenerationFinished,
	}
	for i, typ := range want {
		select {
		case ev := <-events:
			assert.Equal(t, typ, ev.Type, "event %d", i)
			assert.Equal(t, conv.ID, ev.ConversationID)
			assert.Equal(t, testIdentity.ID, ev.UserID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

// gatedPublisher holds the first assistant reply event until gate closes.
type gatedPublisher struct {
	once    sync.Once
	blocked chan struct{}
	gate    chan struct{}
}

func (g *gatedPublisher) PublishEvent(_ context.Context, event *model.SessionEvent) error {
	if event.Type == model.EventMessageAppended && event.Message != nil && event.Message.Role == model.RoleAssistant {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.blocked)
			<-g.gate
		}
	}
	return nil
}

func TestSession_EventOrderFollowsStateOrder(t *testing.T) {
	clock := newFakeClock(testStart)
	b := NewBroadcaster(16)
	events, cancel := b.Subscribe(testIdentity.ID)
	defer cancel()

	gated := &gatedPublisher{blocked: make(chan struct{}), gate: make(chan struct{})}
	s := newTestSession(clock, Options{Publisher: Publishers{b, gated}})
	ctx := context.Background()

	first, err := s.SendMessage(ctx, "first")
	require.NoError(t, err)

	select {
	case <-gated.blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("reply event was not published")
	}

	// The session is idle again, so a second send is accepted while the
	// first reply's events are still being delivered.
	sent := make(chan *Pending, 1)
	go func() {
		p, err := s.SendMessage(ctx, "second")
		assert.NoError(t, err)
		sent <- p
	}()

	select {
	case <-sent:
		t.Fatal("second send published before the first reply finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(gated.gate)

	var second *Pending
	select {
	case second = <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("second send did not return")
	}
	require.NotNil(t, second)
	waitReply(t, first)
	waitReply(t, second)
	s.Wait()

	type step struct {
		typ        model.EventType
		generating bool
	}
	want := []step{
		{model.EventMessageAppended, true},
		{model.EventGenerationStarted, true},
		{model.EventMessageAppended, false},
		{model.EventGenerationFinished, false},
		{model.EventMessageAppended, true},
		{model.EventGenerationStarted, true},
		{model.EventMessageAppended, false},
		{model.EventGenerationFinished, false},
	}
	for i, w := range want {
		select {
		case ev := <-events:
			assert.Equal(t, w.typ, ev.Type, "event %d", i)
			assert.Equal(t, w.generating, ev.IsGenerating, "event %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSession_Wait(t *testing.T) {
	clock := newFakeClock(testStart)
	clock.manual = true
	s := newTestSession(clock, Options{})

	p, err := s.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	waitForTimer(t, clock)
	clock.release()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
	_, arrived := p.Reply()
	assert.True(t, arrived)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	p := newPending("c", model.Message{ID: "u"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
