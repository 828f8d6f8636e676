package redisstore

import (
	"time"

	"github.com/capitalize-ai/campus-chat/internal/model"
)

// userRecord is the stored form of an account; model.User hides the hash
// from JSON.
type userRecord struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Major        string `json:"major"`
	CreatedAt    int64  `json:"created_at"`
}

func (r userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Major:        r.Major,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}
