package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mchat/internal/model"
)

func newTestRegistry() (*Registry, *fakeClock) {
	clock := newFakeClock(testStart)
	ids := &sequentialIDs{}
	return NewRegistry(clock, ids.next), clock
}

func TestRegistry_StartsWithWelcomeBuffer(t *testing.T) {
	r, _ := newTestRegistry()

	assert.Empty(t, r.ActiveID())
	assert.Zero(t, r.Len())

	msgs := r.ActiveMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeMessageID, msgs[0].ID)
	assert.Equal(t, WelcomeMessage, msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
}

func TestRegistry_CreateConversation(t *testing.T) {
	r, _ := newTestRegistry()

	first := r.CreateConversation()
	second := r.CreateConversation()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, model.DefaultConversationTitle, second.Title)
	assert.Equal(t, second.CreatedAt, second.UpdatedAt)
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "welcome-"+second.ID, second.Messages[0].ID)
	assert.Equal(t, ConversationGreeting, second.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, second.Messages[0].Role)

	// Newest first, and the newest is active.
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, second.ID, r.ActiveID())
}

func TestRegistry_SelectConversation(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateConversation()
	b := r.CreateConversation()
	require.Equal(t, b.ID, r.ActiveID())

	require.NoError(t, r.SelectConversation(a.ID))
	assert.Equal(t, a.ID, r.ActiveID())
	assert.Equal(t, a.Messages, r.ActiveMessages())
}

func TestRegistry_LoadConversation(t *testing.T) {
	r, _ := newTestRegistry()
	first := r.CreateConversation()

	newest := testStart.Add(time.Hour)
	saved := []model.Message{
		{ID: "x", Role: model.RoleUser, Content: "hi", Timestamp: testStart},
		{ID: "y", Role: model.RoleAssistant, Content: "hello", Timestamp: newest},
	}
	loaded := r.LoadConversation("  ", saved)
	saved[0].Content = "changed"

	assert.Equal(t, model.DefaultConversationTitle, loaded.Title)
	assert.Equal(t, newest, loaded.UpdatedAt)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hi", loaded.Messages[0].Content)
	assert.NotEqual(t, "x", loaded.Messages[0].ID)
	assert.NotEqual(t, "y", loaded.Messages[1].ID)

	// Loading replaces the active view with the loaded history.
	assert.Equal(t, loaded.ID, r.ActiveID())
	assert.Equal(t, loaded.Messages, r.ActiveMessages())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, loaded.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestRegistry_SelectUnknownConversation(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.CreateConversation()

	err := r.SelectConversation("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, a.ID, r.ActiveID())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRegistry_AppendAdvancesUpdatedAt(t *testing.T) {
	r, clock := newTestRegistry()
	conv := r.CreateConversation()

	dest := r.current()
	ts := clock.Now().Add(time.Hour)
	dest.messages.Append(model.Message{ID: "m1", Content: "x", Role: model.RoleUser, Timestamp: ts})

	got, err := r.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, ts, got.UpdatedAt)
	assert.Equal(t, conv.CreatedAt, got.CreatedAt)

	// An older timestamp never moves updatedAt backwards.
	dest.messages.Append(model.Message{ID: "m2", Content: "y", Role: model.RoleUser, Timestamp: ts.Add(-time.Minute)})
	got, err = r.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, ts, got.UpdatedAt)
}

func TestRegistry_ListGroupedFilter(t *testing.T) {
	r, clock := newTestRegistry()
	a := r.CreateConversation()
	r.current().messages.Append(model.Message{ID: "m1", Content: "Planning a TRIP to Rome", Role: model.RoleUser, Timestamp: clock.Now()})
	b := r.CreateConversation()

	now := clock.Now()

	all := r.ListGrouped("", now)
	require.Len(t, all, 1)
	assert.Equal(t, model.GroupToday, all[0].Label)
	require.Len(t, all[0].Conversations, 2)
	assert.Equal(t, b.ID, all[0].Conversations[0].ID)
	assert.Equal(t, a.ID, all[0].Conversations[1].ID)

	trip := r.ListGrouped("trip", now)
	require.Len(t, trip, 1)
	require.Len(t, trip[0].Conversations, 1)
	assert.Equal(t, a.ID, trip[0].Conversations[0].ID)

	// Title match, case insensitive.
	byTitle := r.ListGrouped("NEW chat", now)
	require.Len(t, byTitle, 1)
	assert.Len(t, byTitle[0].Conversations, 2)

	assert.Empty(t, r.ListGrouped("nothing matches", now))
}

func TestDateGroup(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		updated time.Time
		want    model.GroupLabel
	}{
		{name: "now", updated: now, want: model.GroupToday},
		{name: "start of today", updated: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), want: model.GroupToday},
		{name: "25 hours ago on the previous day", updated: time.Date(2024, 1, 9, 11, 0, 0, 0, time.UTC), want: model.GroupYesterday},
		{name: "start of yesterday", updated: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), want: model.GroupYesterday},
		{name: "end of two days ago", updated: time.Date(2024, 1, 8, 23, 59, 59, 0, time.UTC), want: model.GroupLastWeek},
		{name: "three days ago", updated: now.AddDate(0, 0, -3), want: model.GroupLastWeek},
		{name: "exactly seven days ago", updated: now.Add(-7 * 24 * time.Hour), want: model.GroupLastWeek},
		{name: "just over seven days ago", updated: now.Add(-7*24*time.Hour - time.Second), want: model.GroupOlder},
		{name: "ten days ago", updated: now.AddDate(0, 0, -10), want: model.GroupOlder},
		{
			name:    "other zone converted to local day",
			updated: time.Date(2024, 1, 10, 1, 0, 0, 0, time.FixedZone("PKT", 5*60*60)),
			want:    model.GroupYesterday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DateGroup(tt.updated, now))
		})
	}
}

func TestGroupByDate_OrderAndOmission(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	convs := []model.Conversation{
		{ID: "older", UpdatedAt: now.AddDate(0, 0, -10)},
		{ID: "today-1", UpdatedAt: now},
		{ID: "yesterday", UpdatedAt: now.Add(-25 * time.Hour)},
		{ID: "today-2", UpdatedAt: now.Add(-time.Hour)},
	}

	groups := GroupByDate(convs, now)

	require.Len(t, groups, 3)
	assert.Equal(t, model.GroupToday, groups[0].Label)
	assert.Equal(t, model.GroupYesterday, groups[1].Label)
	assert.Equal(t, model.GroupOlder, groups[2].Label)

	// Input order is kept inside a bucket, not re-sorted by updatedAt.
	require.Len(t, groups[0].Conversations, 2)
	assert.Equal(t, "today-1", groups[0].Conversations[0].ID)
	assert.Equal(t, "today-2", groups[0].Conversations[1].ID)

	assert.Empty(t, GroupByDate(nil, now))
}
