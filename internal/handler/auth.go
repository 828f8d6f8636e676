package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/account"
	"github.com/capitalize-ai/campus-chat/internal/middleware"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	accounts     *account.Service
	cookieSecure bool
	logger       *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts *account.Service, cookieSecure bool, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		cookieSecure: cookieSecure,
		logger:       log,
	}
}

// SignUp handles POST /api/auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxAuthBodyBytes)
	var req model.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.SignUp(r.Context(), &req)
	if err != nil {
		var verr *account.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, account.ErrEmailTaken):
			writeError(w, http.StatusConflict, "An account with this email already exists.")
		default:
			h.logger.Error("sign-up failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// SignIn handles POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxAuthBodyBytes)
	var req model.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.accounts.SignIn(r.Context(), &req)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		h.logger.Error("sign-in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, session)
}

// SignOut handles POST /api/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
