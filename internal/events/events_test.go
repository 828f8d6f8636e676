package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

type capture struct {
	events []*model.ConversationEvent
	err    error
}

func (c *capture) PublishEvent(_ context.Context, ev *model.ConversationEvent) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestNew(t *testing.T) {
	a := New(model.EventTypePersisted, "alice", "c1")
	b := New(model.EventTypePersisted, "alice", "c1")

	assert.Equal(t, model.EventTypePersisted, a.Type)
	assert.Equal(t, "alice", a.UserID)
	assert.Equal(t, "c1", a.ConversationID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestEmit(t *testing.T) {
	pub := &capture{}
	Emit(context.Background(), pub, logger.NewNop(), New(model.EventTypeShared, "alice", "c1"))
	require.Len(t, pub.events, 1)
	assert.Equal(t, model.EventTypeShared, pub.events[0].Type)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := &capture{err: errors.New("bus down")}
	assert.NotPanics(t, func() {
		Emit(context.Background(), pub, logger.NewNop(), New(model.EventTypeDeleted, "alice", "c1"))
	})
	assert.Len(t, pub.events, 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishEvent(context.Background(), New(model.EventTypeCleared, "alice", "")))
}
