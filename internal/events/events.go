// Package events defines how conversation lifecycle events leave the process.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
	"github.com/capitalize-ai/campus-chat/pkg/metrics"
)

// Publisher delivers conversation events to an external bus.
type Publisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) error
}

// Nop drops every event. Used when no bus is configured.
type Nop struct{}

// PublishEvent implements Publisher.
func (Nop) PublishEvent(context.Context, *model.ConversationEvent) error { return nil }

// New builds an event with a fresh id and timestamp.
func New(eventType model.EventType, userID, conversationID string) *model.ConversationEvent {
	return &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           eventType,
		CreatedAt:      time.Now().UTC(),
	}
}

// Emit publishes event and records the outcome. A failed publish is logged
// and otherwise ignored; events never fail the operation that raised them.
func Emit(ctx context.Context, pub Publisher, log *logger.Logger, event *model.ConversationEvent) {
	err := pub.PublishEvent(ctx, event)
	metrics.RecordEvent(string(event.Type), err)
	if err != nil {
		log.Warn("failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
	}
}
