// Package account handles sign-up and sign-in.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

var (
	// ErrEmailTaken is returned when the email already has an account.
	ErrEmailTaken = store.ErrEmailTaken

	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. The two are not distinguished.
	ErrInvalidCredentials = errors.New("account: invalid email or password")
)

// ValidationError is a user-facing rejection of a sign-up form.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Config holds account policy.
type Config struct {
	EmailDomainSuffix string
	MinPasswordLength int
	BcryptCost        int
}

// Service manages accounts and sessions.
type Service struct {
	users  store.UserStore
	tokens *Tokens
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates an account service.
func NewService(users store.UserStore, tokens *Tokens, cfg Config, log *logger.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		logger: log.Named("account"),
		now:    time.Now,
	}
}

// Validate checks a sign-up form without touching the store.
func (s *Service) Validate(req *model.SignUpRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &ValidationError{Message: "Please enter a valid email address."}
	}
	if suffix := strings.ToLower(s.cfg.EmailDomainSuffix); suffix != "" && !strings.HasSuffix(email, suffix) {
		return &ValidationError{Message: fmt.Sprintf("Only %s emails are allowed.", suffix)}
	}
	if req.Password != req.ConfirmPassword {
		return &ValidationError{Message: "Please ensure both passwords match."}
	}
	if strings.TrimSpace(req.Major) == "" {
		return &ValidationError{Message: "Please enter your major."}
	}
	if len(req.Password) < s.cfg.MinPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters.", s.cfg.MinPasswordLength)}
	}
	return nil
}

// SignUp validates the form and creates the account.
func (s *Service) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Major:        strings.TrimSpace(req.Major),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account created", zap.String("user_id", user.ID))
	return user, nil
}

// SignIn checks the credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, req *model.SignInRequest) (*model.SessionResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(user.ID, user.Email, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("session started", zap.String("user_id", user.ID))
	return &model.SessionResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
