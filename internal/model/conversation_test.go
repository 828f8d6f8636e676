package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTitle(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{"short", []Message{{Role: RoleUser, Content: "hello"}}, "hello"},
		{"empty list", nil, DefaultTitle},
		{"empty content", []Message{{Role: RoleUser, Content: ""}}, DefaultTitle},
		{"exactly 100", []Message{{Role: RoleUser, Content: strings.Repeat("a", 100)}}, strings.Repeat("a", 100)},
		{"truncated", []Message{{Role: RoleUser, Content: strings.Repeat("b", 150)}}, strings.Repeat("b", 100)},
		{"first message only", []Message{{Role: RoleUser, Content: "one"}, {Role: RoleAssistant, Content: "two"}}, "one"},
		{"skips system prompt", []Message{{Role: RoleSystem, Content: "You are a helpful tutor."}, {Role: RoleUser, Content: "Explain eigenvalues"}}, "Explain eigenvalues"},
		{"first user turn wins", []Message{{Role: RoleUser, Content: "first"}, {Role: RoleAssistant, Content: "a"}, {Role: RoleUser, Content: "second"}}, "first"},
		{"no user message", []Message{{Role: RoleSystem, Content: "be terse"}}, DefaultTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTitle(tt.messages))
		})
	}
}

func TestNewTitleCountsCharactersNotBytes(t *testing.T) {
	content := strings.Repeat("é", 120)
	title := NewTitle([]Message{{Role: RoleUser, Content: content}})
	assert.Equal(t, strings.Repeat("é", 100), title)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/chat/abc", ChatPath("abc"))
	assert.Equal(t, "/share/abc", SharePath("abc"))
}

func TestNewSharePayload(t *testing.T) {
	conv := &Conversation{
		ID:        "abc",
		UserID:    "u1",
		Title:     "hi",
		CreatedAt: 42,
		Path:      "/chat/abc",
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
	}
	p := NewSharePayload(conv)
	assert.Equal(t, "/share/abc", p.SharePath)
	assert.Equal(t, conv.Messages, p.Messages)

	conv.Messages[0].Content = "changed"
	assert.Equal(t, "hi", p.Messages[0].Content, "payload must be a snapshot")

	assert.False(t, conv.Shared())
	conv.Payload = p
	assert.True(t, conv.Shared())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleSystem.Valid())
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("function").Valid())
	assert.False(t, Role("").Valid())
}
