package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/campus-chat/internal/model"
)

const (
	// StreamName is the name of the conversation events stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "chat"
)

// EventBus publishes conversation events to JetStream.
type EventBus struct {
	client *Client
}

// NewEventBus creates an event bus on an established client.
func NewEventBus(client *Client) *EventBus {
	return &EventBus{client: client}
}

// EnsureStream creates the events stream if it does not exist yet.
func (b *EventBus) EnsureStream(ctx context.Context) error {
	js := b.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(userID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s",
		SubjectPrefix, token(userID), token(conversationID), token(string(eventType)))
}

// PublishEvent implements events.Publisher.
func (b *EventBus) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	subject := EventSubject(event.UserID, event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := b.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
