package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
)

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.exec(ctx, `
INSERT INTO users (id, email, password_hash, major, created_at)
VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Major,
		user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return store.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up an account.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	var created int64
	err := s.queryRow(ctx, `
SELECT id, email, password_hash, major, created_at
FROM users
WHERE email = ?`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Major, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}
