// Package model defines data structures for the chat service.
package model

import "unicode/utf8"

const (
	// MaxTitleLength is the number of characters kept from the first message.
	MaxTitleLength = 100

	// DefaultTitle is used when the first message has no content.
	DefaultTitle = "Untitled"
)

// Conversation is a persisted, owner-scoped chat history.
type Conversation struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Title     string        `json:"title"`
	CreatedAt int64         `json:"createdAt"`
	Path      string        `json:"path"`
	Messages  []Message     `json:"messages"`
	Payload   *SharePayload `json:"payload,omitempty"`
}

// SharePayload is the public snapshot of a conversation.
// A non-empty SharePath marks the conversation as shared.
type SharePayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"createdAt"`
	Path      string    `json:"path"`
	Messages  []Message `json:"messages"`
	SharePath string    `json:"sharePath"`
}

// Shared reports whether the conversation carries a public share marker.
func (c *Conversation) Shared() bool {
	return c.Payload != nil && c.Payload.SharePath != ""
}

// NewSharePayload snapshots c for the public share view.
func NewSharePayload(c *Conversation) *SharePayload {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return &SharePayload{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		Path:      c.Path,
		Messages:  msgs,
		SharePath: SharePath(c.ID),
	}
}

// NewTitle derives a conversation title from the first user message,
// cut to MaxTitleLength characters.
func NewTitle(messages []Message) string {
	var content string
	for _, m := range messages {
		if m.Role == RoleUser {
			content = m.Content
			break
		}
	}
	if content == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(content) <= MaxTitleLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:MaxTitleLength])
}

// ChatPath returns the reference path of a conversation.
func ChatPath(id string) string {
	return "/chat/" + id
}

// SharePath returns the public path of a shared conversation.
func SharePath(id string) string {
	return "/share/" + id
}
