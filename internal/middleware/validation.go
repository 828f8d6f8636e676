package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/capitalize-ai/campus-chat/internal/model"
)

const (
	// MaxContentLength bounds a single message, in bytes.
	MaxContentLength = 100000
	// MaxMessages bounds the history sent with one chat request.
	MaxMessages = 500
	// MaxBodyBytes bounds a chat request body.
	MaxBodyBytes = 4 << 20
	// MaxAuthBodyBytes bounds a sign-up or sign-in body.
	MaxAuthBodyBytes = 64 << 10
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateChatRequest validates a relay request body.
func ValidateChatRequest(req *model.ChatRequest) error {
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	if len(req.Messages) > MaxMessages {
		return errors.New("too many messages")
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		if err := ValidateMessageContent(m.Content); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	if req.ID != "" {
		if err := ValidateConversationID(req.ID); err != nil {
			return err
		}
	}
	return nil
}
