package model

import "time"

// User is an account able to own conversations.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Major        string    `json:"major"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignUpRequest is the request to create an account.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Major           string `json:"major"`
}

// SignInRequest is the request to start a session.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned after a successful sign-in.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
