// Package redisstore implements the store on Redis.
//
// Conversations are JSON documents under conversation:<id>. Each owner has a
// sorted set user_conversations:<owner> scored by creation time so listing
// needs no scan. Accounts live under user:email:<email>.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
)

const maxTxRetries = 5

// Store implements store.Store on a Redis client.
type Store struct {
	rdb *redis.Client
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return New(rdb), nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func conversationKey(id string) string { return "conversation:" + id }

func ownerKey(userID string) string { return "user_conversations:" + userID }

func userKey(email string) string { return "user:email:" + email }

// Upsert inserts or replaces the owner's conversation, keeping its payload.
func (s *Store) Upsert(ctx context.Context, conv *model.Conversation) error {
	key := conversationKey(conv.ID)

	txf := func(tx *redis.Tx) error {
		existing, err := getConversation(ctx, tx, key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		next := *conv
		next.Payload = nil
		if existing != nil {
			if existing.UserID != conv.UserID {
				return store.ErrNotOwner
			}
			next.Payload = existing.Payload
		}

		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, ownerKey(conv.UserID), redis.Z{
				Score:  float64(conv.CreatedAt),
				Member: conv.ID,
			})
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, store.ErrNotOwner) {
			return err
		}
		return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Get returns the owner's conversation.
func (s *Store) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, err := getConversation(ctx, s.rdb, conversationKey(id))
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

// List returns the owner's conversations, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	ids, err := s.rdb.ZRevRange(ctx, ownerKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversation ids: %w", err)
	}

	convs := make([]model.Conversation, 0, len(ids))
	if len(ids) == 0 {
		return convs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = conversationKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its document
			continue
		}
		var conv model.Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			return nil, fmt.Errorf("unmarshal conversation %s: %w", ids[i], err)
		}
		if conv.UserID != userID {
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// Delete removes the owner's conversation.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	key := conversationKey(id)

	txf := func(tx *redis.Tx) error {
		conv, err := getConversation(ctx, tx, key)
		if err != nil {
			return err
		}
		if conv.UserID != userID {
			return store.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, ownerKey(userID), id)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every conversation of the owner.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	idx := ownerKey(userID)
	ids, err := s.rdb.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = conversationKey(id)
		members[i] = id
	}

	// Only the ids read above leave the index; a conversation upserted in
	// between keeps its entry.
	var removed *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, idx, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}
	return removed.Val(), nil
}

// SetPayload stores the share payload of the owner's conversation.
func (s *Store) SetPayload(ctx context.Context, userID, id string, payload *model.SharePayload) error {
	key := conversationKey(id)

	txf := func(tx *redis.Tx) error {
		conv, err := getConversation(ctx, tx, key)
		if err != nil {
			return err
		}
		if conv.UserID != userID {
			return store.ErrNotFound
		}
		conv.Payload = payload
		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("marshal conversation: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("share conversation %s: %w", id, err)
	}
	return nil
}

// GetShared returns the share payload of a shared conversation.
func (s *Store) GetShared(ctx context.Context, id string) (*model.SharePayload, error) {
	conv, err := getConversation(ctx, s.rdb, conversationKey(id))
	if err != nil {
		return nil, err
	}
	if !conv.Shared() {
		return nil, store.ErrNotFound
	}
	return conv.Payload, nil
}

// CreateUser adds an account unless the email is registered.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(userRecord{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Major:        user.Major,
		CreatedAt:    user.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, userKey(user.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if !ok {
		return store.ErrEmailTaken
	}
	return nil
}

// GetUserByEmail looks up an account.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	raw, err := s.rdb.Get(ctx, userKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return rec.toModel(), nil
}

// Ping verifies Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// watch runs txf under optimistic locking, retrying when a watched key
// changes before EXEC.
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func getConversation(ctx context.Context, c redis.Cmdable, key string) (*model.Conversation, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var conv model.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &conv, nil
}
