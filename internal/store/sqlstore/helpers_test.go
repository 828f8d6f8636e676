package sqlstore

import (
	"time"

	"github.com/capitalize-ai/campus-chat/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:           "u1",
		Email:        "ada@uni.edu",
		PasswordHash: "hash",
		Major:        "Mathematics",
		CreatedAt:    time.Now(),
	}
}
