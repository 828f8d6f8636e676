package model

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body accepted by the completion relay.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	ID       string    `json:"id,omitempty"`

	// PreviewToken replaces the provider credential for this request only.
	PreviewToken string `json:"previewToken,omitempty"`
}
