// Package service provides business logic for the chat platform.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/events"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
	"github.com/capitalize-ai/campus-chat/pkg/metrics"
)

// ErrNotFound is returned for missing conversations and for conversations
// owned by someone else.
var ErrNotFound = store.ErrNotFound

// ConversationService handles owner-scoped conversation operations.
type ConversationService struct {
	store  store.ConversationStore
	events events.Publisher
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.ConversationStore, pub events.Publisher, log *logger.Logger) *ConversationService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &ConversationService{
		store:  st,
		events: pub,
		logger: log.Named("conversations"),
	}
}

// Get retrieves one of the owner's conversations.
func (s *ConversationService) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := s.store.Get(ctx, userID, id)
	metrics.RecordConversationOp("get", ignoreNotFound(err))
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// List returns the owner's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	convs, err := s.store.List(ctx, userID)
	metrics.RecordConversationOp("list", err)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Delete removes one of the owner's conversations.
func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	err := s.store.Delete(ctx, userID, id)
	metrics.RecordConversationOp("delete", ignoreNotFound(err))
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.Info("conversation deleted",
		zap.String("user_id", userID),
		zap.String("conversation_id", id),
	)
	events.Emit(ctx, s.events, s.logger, events.New(model.EventTypeDeleted, userID, id))
	return nil
}

// Clear removes every conversation of the owner and reports how many.
func (s *ConversationService) Clear(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUnauthorized
	}
	n, err := s.store.DeleteAll(ctx, userID)
	metrics.RecordConversationOp("clear", err)
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}

	s.logger.Info("conversations cleared",
		zap.String("user_id", userID),
		zap.Int64("count", n),
	)
	ev := events.New(model.EventTypeCleared, userID, "")
	ev.Metadata = map[string]any{"count": n}
	events.Emit(ctx, s.events, s.logger, ev)
	return n, nil
}

// Share marks one of the owner's conversations as publicly readable and
// returns the stored snapshot.
func (s *ConversationService) Share(ctx context.Context, userID, id string) (*model.SharePayload, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := s.store.Get(ctx, userID, id)
	if err != nil {
		metrics.RecordConversationOp("share", ignoreNotFound(err))
		return nil, fmt.Errorf("share conversation: %w", err)
	}

	payload := model.NewSharePayload(conv)
	err = s.store.SetPayload(ctx, userID, id, payload)
	metrics.RecordConversationOp("share", ignoreNotFound(err))
	if err != nil {
		return nil, fmt.Errorf("share conversation: %w", err)
	}

	ev := events.New(model.EventTypeShared, userID, id)
	ev.Metadata = map[string]any{"share_path": payload.SharePath}
	events.Emit(ctx, s.events, s.logger, ev)
	return payload, nil
}

// GetShared returns the public snapshot of a shared conversation.
func (s *ConversationService) GetShared(ctx context.Context, id string) (*model.SharePayload, error) {
	payload, err := s.store.GetShared(ctx, id)
	metrics.RecordConversationOp("get_shared", ignoreNotFound(err))
	if err != nil {
		return nil, fmt.Errorf("get shared conversation: %w", err)
	}
	return payload, nil
}

// ignoreNotFound keeps misses out of the error rate.
func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
