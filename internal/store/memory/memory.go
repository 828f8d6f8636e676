// Package memory provides an in-process store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
)

// Store keeps conversations and users in maps guarded by a RWMutex.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	users         map[string]*model.User
}

// New creates an empty store.
func New() *Store {
	return &Store{
		conversations: make(map[string]*model.Conversation),
		users:         make(map[string]*model.User),
	}
}

// Upsert inserts or replaces a conversation by id.
func (s *Store) Upsert(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneConversation(conv)
	if existing, ok := s.conversations[conv.ID]; ok {
		if existing.UserID != conv.UserID {
			return store.ErrNotOwner
		}
		next.Payload = existing.Payload
	} else {
		next.Payload = nil
	}
	s.conversations[conv.ID] = next
	return nil
}

// Get returns the owner's conversation.
func (s *Store) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return cloneConversation(conv), nil
}

// List returns the owner's conversations, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := make([]model.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			convs = append(convs, *cloneConversation(conv))
		}
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt > convs[j].CreatedAt
	})
	return convs, nil
}

// Delete removes the owner's conversation.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// DeleteAll removes every conversation of the owner.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, conv := range s.conversations {
		if conv.UserID == userID {
			delete(s.conversations, id)
			n++
		}
	}
	return n, nil
}

// SetPayload stores the share payload of the owner's conversation.
func (s *Store) SetPayload(ctx context.Context, userID, id string, payload *model.SharePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	if payload == nil {
		conv.Payload = nil
		return nil
	}
	conv.Payload = clonePayload(payload)
	return nil
}

// GetShared returns the share payload of a shared conversation.
func (s *Store) GetShared(ctx context.Context, id string) (*model.SharePayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || !conv.Shared() {
		return nil, store.ErrNotFound
	}
	return clonePayload(conv.Payload), nil
}

// CreateUser adds an account.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return store.ErrEmailTaken
	}
	u := *user
	s.users[user.Email] = &u
	return nil
}

// GetUserByEmail looks up an account.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Messages = append([]model.Message(nil), c.Messages...)
	if c.Payload != nil {
		out.Payload = clonePayload(c.Payload)
	}
	return &out
}

func clonePayload(p *model.SharePayload) *model.SharePayload {
	out := *p
	out.Messages = append([]model.Message(nil), p.Messages...)
	return &out
}
