// Package store defines persistence for conversations and accounts.
package store

import (
	"context"
	"errors"

	"github.com/capitalize-ai/campus-chat/internal/model"
)

var (
	// ErrNotFound is returned for missing conversations and for conversations
	// that belong to another owner.
	ErrNotFound = errors.New("store: conversation not found")

	// ErrNotOwner is returned when an upsert targets an id held by another owner.
	ErrNotOwner = errors.New("store: conversation owned by another user")

	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrEmailTaken is returned when an account with the email already exists.
	ErrEmailTaken = errors.New("store: email already registered")
)

// ConversationStore persists conversations.
//
// Upsert replaces every conversation column of an existing row with the same
// id (last write wins, no merge) but leaves the share payload untouched.
type ConversationStore interface {
	Upsert(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, userID, id string) (*model.Conversation, error)
	List(ctx context.Context, userID string) ([]model.Conversation, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
	SetPayload(ctx context.Context, userID, id string, payload *model.SharePayload) error
	GetShared(ctx context.Context, id string) (*model.SharePayload, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Store is a complete storage backend.
type Store interface {
	ConversationStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
