// Package storetest holds the behavioural suite every store backend runs.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
)

// Run exercises a store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"UpsertAndGet", testUpsertAndGet},
		{"UpsertReplacesButKeepsPayload", testUpsertKeepsPayload},
		{"UpsertForeignOwner", testUpsertForeignOwner},
		{"GetScopedToOwner", testGetScopedToOwner},
		{"ListNewestFirst", testListNewestFirst},
		{"ListEmpty", testListEmpty},
		{"Delete", testDelete},
		{"DeleteAll", testDeleteAll},
		{"ShareRoundTrip", testShare},
		{"GetSharedUnshared", testGetSharedUnshared},
		{"GetSharedReturnsCopy", testGetSharedReturnsCopy},
		{"Users", testUsers},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func conversation(id, userID string, createdAt int64, content string) *model.Conversation {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: content},
		{Role: model.RoleAssistant, Content: "reply to " + content},
	}
	return &model.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     model.NewTitle(msgs),
		CreatedAt: createdAt,
		Path:      model.ChatPath(id),
		Messages:  msgs,
	}
}

func testUpsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv := conversation("c1", "alice", 1000, "hello")
	require.NoError(t, s.Upsert(ctx, conv))

	got, err := s.Get(ctx, "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.UserID, got.UserID)
	assert.Equal(t, "hello", got.Title)
	assert.Equal(t, int64(1000), got.CreatedAt)
	assert.Equal(t, "/chat/c1", got.Path)
	assert.Equal(t, conv.Messages, got.Messages)
	assert.Nil(t, got.Payload)
}

func testUpsertKeepsPayload(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv := conversation("c1", "alice", 1000, "first")
	require.NoError(t, s.Upsert(ctx, conv))
	require.NoError(t, s.SetPayload(ctx, "alice", "c1", model.NewSharePayload(conv)))

	next := conversation("c1", "alice", 2000, "second")
	next.Messages = append(next.Messages, model.Message{Role: model.RoleUser, Content: "more"})
	require.NoError(t, s.Upsert(ctx, next))

	got, err := s.Get(ctx, "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, int64(2000), got.CreatedAt)
	assert.Len(t, got.Messages, 3)
	require.NotNil(t, got.Payload)
	assert.Equal(t, "/share/c1", got.Payload.SharePath)
	assert.Equal(t, "first", got.Payload.Title)
}

func testUpsertForeignOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, conversation("c1", "alice", 1000, "mine")))

	err := s.Upsert(ctx, conversation("c1", "mallory", 2000, "stolen"))
	require.ErrorIs(t, err, store.ErrNotOwner)

	got, err := s.Get(ctx, "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Title)
}

func testGetScopedToOwner(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, conversation("c1", "alice", 1000, "hi")))

	_, err := s.Get(ctx, "bob", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, ts := range []int64{3000, 1000, 2000} {
		require.NoError(t, s.Upsert(ctx, conversation(fmt.Sprintf("c%d", i), "alice", ts, "m")))
	}
	require.NoError(t, s.Upsert(ctx, conversation("other", "bob", 9000, "m")))

	convs, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, int64(3000), convs[0].CreatedAt)
	assert.Equal(t, int64(2000), convs[1].CreatedAt)
	assert.Equal(t, int64(1000), convs[2].CreatedAt)
}

func testListEmpty(t *testing.T, s store.Store) {
	convs, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, conversation("c1", "alice", 1000, "hi")))

	assert.ErrorIs(t, s.Delete(ctx, "bob", "c1"), store.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "alice", "c1"))
	assert.ErrorIs(t, s.Delete(ctx, "alice", "c1"), store.ErrNotFound)

	_, err := s.Get(ctx, "alice", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	convs, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func testDeleteAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, conversation("a1", "alice", 1000, "x")))
	require.NoError(t, s.Upsert(ctx, conversation("a2", "alice", 2000, "y")))
	require.NoError(t, s.Upsert(ctx, conversation("b1", "bob", 3000, "z")))

	n, err := s.DeleteAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	convs, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, convs)

	convs, err = s.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, convs, 1)

	n, err = s.DeleteAll(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testShare(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv := conversation("c1", "alice", 1000, "share me")
	require.NoError(t, s.Upsert(ctx, conv))

	assert.ErrorIs(t, s.SetPayload(ctx, "bob", "c1", model.NewSharePayload(conv)), store.ErrNotFound)
	require.NoError(t, s.SetPayload(ctx, "alice", "c1", model.NewSharePayload(conv)))

	shared, err := s.GetShared(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", shared.ID)
	assert.Equal(t, "alice", shared.UserID)
	assert.Equal(t, "/share/c1", shared.SharePath)
	assert.Equal(t, conv.Messages, shared.Messages)
}

func testGetSharedUnshared(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, conversation("c1", "alice", 1000, "private")))

	_, err := s.GetShared(ctx, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetShared(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testGetSharedReturnsCopy(t *testing.T, s store.Store) {
	ctx := context.Background()
	conv := conversation("c1", "alice", 1000, "snapshot")
	require.NoError(t, s.Upsert(ctx, conv))
	require.NoError(t, s.SetPayload(ctx, "alice", "c1", model.NewSharePayload(conv)))

	first, err := s.GetShared(ctx, "c1")
	require.NoError(t, err)
	first.Messages[0].Content = "tampered"
	first.Messages = append(first.Messages, model.Message{Role: model.RoleUser, Content: "extra"})

	again, err := s.GetShared(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, conv.Messages, again.Messages)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := time.UnixMilli(time.Now().UnixMilli()).UTC()
	user := &model.User{
		ID:           "u1",
		Email:        "ada@uni.edu",
		PasswordHash: "hash",
		Major:        "Mathematics",
		CreatedAt:    created,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	dup := *user
	dup.ID = "u2"
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrEmailTaken)

	got, err := s.GetUserByEmail(ctx, "ada@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, "Mathematics", got.Major)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.GetUserByEmail(ctx, "nobody@uni.edu")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
