package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypePersisted     EventType = "persisted"
	EventTypePersistFailed EventType = "persist_failed"
	EventTypeStreamFailed  EventType = "stream_failed"
	EventTypeDeleted       EventType = "deleted"
	EventTypeCleared       EventType = "cleared"
	EventTypeShared        EventType = "shared"
)

// ConversationEvent represents a lifecycle event of a conversation.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
