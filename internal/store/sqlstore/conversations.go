package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
)

const conversationColumns = `id, title, user_id, created_at, path, messages, payload`

// Upsert inserts a conversation or replaces the owner's existing row.
func (s *Store) Upsert(ctx context.Context, conv *model.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	res, err := s.exec(ctx, `
INSERT INTO conversations (id, title, user_id, created_at, path, messages)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	title = excluded.title,
	created_at = excluded.created_at,
	path = excluded.path,
	messages = excluded.messages
WHERE conversations.user_id = excluded.user_id`,
		conv.ID,
		conv.Title,
		conv.UserID,
		conv.CreatedAt,
		conv.Path,
		string(messages),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
	}
	if n == 0 {
		return store.ErrNotOwner
	}
	return nil
}

// Get returns the owner's conversation.
func (s *Store) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	row := s.queryRow(ctx, `
SELECT `+conversationColumns+`
FROM conversations
WHERE id = ? AND user_id = ?`, id, userID)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns the owner's conversations, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.query(ctx, `
SELECT `+conversationColumns+`
FROM conversations
WHERE user_id = ?
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// Delete removes the owner's conversation.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAll removes every conversation of the owner.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}
	return res.RowsAffected()
}

// SetPayload stores the share payload of the owner's conversation.
func (s *Store) SetPayload(ctx context.Context, userID, id string, payload *model.SharePayload) error {
	var raw any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw = string(data)
	}

	res, err := s.exec(ctx, `UPDATE conversations SET payload = ? WHERE id = ? AND user_id = ?`, raw, id, userID)
	if err != nil {
		return fmt.Errorf("share conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("share conversation %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetShared returns the share payload of a shared conversation.
func (s *Store) GetShared(ctx context.Context, id string) (*model.SharePayload, error) {
	var raw sql.NullString
	err := s.queryRow(ctx, `SELECT payload FROM conversations WHERE id = ? AND payload IS NOT NULL`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shared conversation %s: %w", id, err)
	}

	var payload model.SharePayload
	if err := json.Unmarshal([]byte(raw.String), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload %s: %w", id, err)
	}
	if payload.SharePath == "" {
		return nil, store.ErrNotFound
	}
	return &payload, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*model.Conversation, error) {
	var conv model.Conversation
	var messages string
	var payload sql.NullString
	if err := row.Scan(&conv.ID, &conv.Title, &conv.UserID, &conv.CreatedAt, &conv.Path, &messages, &payload); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if payload.Valid && payload.String != "" {
		conv.Payload = &model.SharePayload{}
		if err := json.Unmarshal([]byte(payload.String), conv.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &conv, nil
}
