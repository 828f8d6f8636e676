package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/persist"
	"github.com/capitalize-ai/campus-chat/internal/store"
	"github.com/capitalize-ai/campus-chat/internal/store/memory"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

type chatFixture struct {
	llm       *fakeLLM
	store     *memory.Store
	persister *persist.Persister
	events    *recorder
	svc       *ChatService
}

func newChatFixture(t *testing.T, client *fakeLLM) *chatFixture {
	t.Helper()
	st := memory.New()
	rec := &recorder{}
	p := persist.New(st, rec, logger.NewNop(), 0)
	t.Cleanup(p.Close)

	return &chatFixture{
		llm:       client,
		store:     st,
		persister: p,
		events:    rec,
		svc:       NewChatService(client, p, rec, ChatConfig{Model: "fake-1", Temperature: 0.7}, logger.NewNop()),
	}
}

func userTurn(content string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: content}}
}

func TestStreamPassesChunksThrough(t *testing.T) {
	chunks := []string{"Hel", "lo", ", ", "wörld", "\n", "  "}
	f := newChatFixture(t, newFakeLLM(chunks...))

	sink := &chunkSink{}
	res, err := f.svc.Stream(context.Background(), "alice", &model.ChatRequest{Messages: userTurn("hi")}, sink)
	require.NoError(t, err)

	assert.Equal(t, chunks, sink.chunks)
	assert.False(t, res.Truncated)
	assert.False(t, res.CallerGone)
}

func TestStreamPersistsExactlyOnce(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("Hi", " there"))

	prior := []model.Message{
		{Role: model.RoleSystem, Content: "be nice"},
		{Role: model.RoleUser, Content: "hello"},
	}
	res, err := f.svc.Stream(context.Background(), "alice", &model.ChatRequest{ID: "c1", Messages: prior}, &chunkSink{})
	require.NoError(t, err)
	f.persister.Wait()

	convs, err := f.store.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.Equal(t, "c1", res.ConversationID)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "alice", conv.UserID)
	assert.Equal(t, "/chat/c1", conv.Path)
	assert.Equal(t, "be nice", conv.Title)
	assert.NotZero(t, conv.CreatedAt)
	assert.Equal(t, append(prior, model.Message{Role: model.RoleAssistant, Content: "Hi there"}), conv.Messages)

	assert.Equal(t, []model.EventType{model.EventTypePersisted}, f.events.types())
}

func TestStreamGeneratesDistinctIDs(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("ok"))
	ctx := context.Background()

	a, err := f.svc.Stream(ctx, "alice", &model.ChatRequest{Messages: userTurn("one")}, &chunkSink{})
	require.NoError(t, err)
	b, err := f.svc.Stream(ctx, "alice", &model.ChatRequest{Messages: userTurn("two")}, &chunkSink{})
	require.NoError(t, err)
	f.persister.Wait()

	assert.NotEmpty(t, a.ConversationID)
	assert.NotEqual(t, a.ConversationID, b.ConversationID)

	convs, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 2)
	for _, c := range convs {
		assert.Equal(t, "/chat/"+c.ID, c.Path)
	}
}

func TestStreamTitleTruncated(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("ok"))
	long := strings.Repeat("x", 250)

	_, err := f.svc.Stream(context.Background(), "alice", &model.ChatRequest{ID: "c1", Messages: userTurn(long)}, &chunkSink{})
	require.NoError(t, err)
	f.persister.Wait()

	conv, err := f.store.Get(context.Background(), "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, long[:100], conv.Title)

	msgs := append([]model.Message{{Role: model.RoleSystem, Content: "You are a helpful tutor."}}, userTurn(long)...)
	_, err = f.svc.Stream(context.Background(), "alice", &model.ChatRequest{ID: "c2", Messages: msgs}, &chunkSink{})
	require.NoError(t, err)
	f.persister.Wait()

	conv, err = f.store.Get(context.Background(), "alice", "c2")
	require.NoError(t, err)
	assert.Equal(t, long[:100], conv.Title)
}

func TestStreamRequiresOwner(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("secret"))
	sink := &chunkSink{}

	_, err := f.svc.Stream(context.Background(), "", &model.ChatRequest{ID: "c1", Messages: userTurn("hi")}, sink)
	require.ErrorIs(t, err, ErrUnauthorized)
	f.persister.Wait()

	assert.Zero(t, f.llm.calls())
	assert.Empty(t, sink.chunks)
	_, err = f.store.GetShared(context.Background(), "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.events.types())
}

func TestStreamSameIDLastWriteWins(t *testing.T) {
	ctx := context.Background()

	first := newChatFixture(t, newFakeLLM("first reply"))
	_, err := first.svc.Stream(ctx, "alice", &model.ChatRequest{ID: "c1", Messages: userTurn("first")}, &chunkSink{})
	require.NoError(t, err)
	first.persister.Wait()

	second := NewChatService(newFakeLLM("second reply"), first.persister, first.events, ChatConfig{}, logger.NewNop())
	_, err = second.Stream(ctx, "alice", &model.ChatRequest{ID: "c1", Messages: userTurn("second")}, &chunkSink{})
	require.NoError(t, err)
	first.persister.Wait()

	convs, err := first.store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "second", convs[0].Title)
	assert.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "second"},
		{Role: model.RoleAssistant, Content: "second reply"},
	}, convs[0].Messages)
}

func TestStreamRejectsInvalidRequests(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("x"))
	ctx := context.Background()

	_, err := f.svc.Stream(ctx, "alice", &model.ChatRequest{}, &chunkSink{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Stream(ctx, "alice", &model.ChatRequest{
		Messages: []model.Message{{Role: "tool", Content: "x"}},
	}, &chunkSink{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Zero(t, f.llm.calls())
}

func TestStreamFailureBeforeFirstChunk(t *testing.T) {
	client := newFakeLLM("never")
	client.failAfter = 0
	client.err = errors.New("connection refused")
	f := newChatFixture(t, client)

	sink := &chunkSink{}
	res, err := f.svc.Stream(context.Background(), "alice", &model.ChatRequest{ID: "c1", Messages: userTurn("hi")}, sink)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Nil(t, res)
	f.persister.Wait()

	assert.Empty(t, sink.chunks)
	_, err = f.store.Get(context.Background(), "alice", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []model.EventType{model.EventTypeStreamFailed}, f.events.types())
}

func TestStreamFailureMidStream(t *testing.T) {
	client := newFakeLLM("one", "two", "three")
	client.failAfter = 2
	client.err = errors.New("reset by peer")
	f := newChatFixture(t, client)

	sink := &chunkSink{}
	res, err := f.svc.Stream(context.Background(), "alice", &model.ChatRequest{ID: "c1", Messages: userTurn("hi")}, sink)
	require.NoError(t, err)
	f.persister.Wait()

	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"one", "two"}, sink.chunks)
	_, err = f.store.Get(context.Background(), "alice", "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []model.EventType{model.EventTypeStreamFailed}, f.events.types())
}

func TestStreamCallerDisconnectStillPersists(t *testing.T) {
	f := newChatFixture(t, newFakeLLM("a", "b", "c"))

	ctx, cancel := context.WithCancel(context.Background())
	sink := &chunkSink{failAt: 1, err: errors.New("broken pipe")}
	cancel()

	res, err := f.svc.Stream(ctx, "alice", &model.ChatRequest{ID: "c1", Messages: userTurn("hi")}, sink)
	require.NoError(t, err)
	f.persister.Wait()

	assert.True(t, res.CallerGone)
	assert.Equal(t, []string{"a"}, sink.chunks)
	assert.Equal(t, []error{nil}, f.llm.ctxErrs, "provider call must not inherit caller cancellation")

	conv, err := f.store.Get(context.Background(), "alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "abc", conv.Messages[len(conv.Messages)-1].Content)
}

func TestStreamCredentialOverrideIsRequestScoped(t *testing.T) {
	client := newFakeLLM("ok")
	f := newChatFixture(t, client)
	ctx := context.Background()

	_, err := f.svc.Stream(ctx, "alice", &model.ChatRequest{Messages: userTurn("a"), PreviewToken: "sk-alice"}, &chunkSink{})
	require.NoError(t, err)
	_, err = f.svc.Stream(ctx, "bob", &model.ChatRequest{Messages: userTurn("b")}, &chunkSink{})
	require.NoError(t, err)

	require.Len(t, client.requests, 2)
	assert.Equal(t, "sk-alice", client.requests[0].APIKey)
	assert.Empty(t, client.requests[1].APIKey)
	assert.Equal(t, "fake-1", client.requests[0].Model)
	assert.InDelta(t, 0.7, client.requests[0].Temperature, 1e-9)
}
