package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campus-chat/internal/account"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetUserID(r.Context())))
}

func TestAuthenticateBearerAndCookie(t *testing.T) {
	tokens := account.NewTokens("secret", time.Hour)
	token, _, err := tokens.Issue("u1", "a@uni.edu", time.Now())
	require.NoError(t, err)

	h := Authenticate(tokens)(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Body.String())
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(whoami))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), "u1", "a@uni.edu"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestLoggingSetsCorrelationIDAndFlushes(t *testing.T) {
	var seen string
	var flushed bool
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationID(r.Context())
		_, flushed = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", rec.Header().Get(CorrelationIDHeader))
	assert.True(t, flushed)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
}

func TestUserRateLimit(t *testing.T) {
	h := UserRateLimit(2, time.Minute)(http.HandlerFunc(whoami))

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), user, ""))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	assert.Equal(t, http.StatusOK, do("u2"))
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID("0192f0c4-aaaa-7bbb-8ccc-123456789abc"))
	assert.NoError(t, ValidateConversationID("abc_DEF-123"))
	assert.Error(t, ValidateConversationID(""))
	assert.Error(t, ValidateConversationID("../etc"))
	assert.Error(t, ValidateConversationID(strings.Repeat("a", 65)))
}

func TestValidateChatRequest(t *testing.T) {
	ok := &model.ChatRequest{Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}}}
	assert.NoError(t, ValidateChatRequest(ok))

	assert.Error(t, ValidateChatRequest(&model.ChatRequest{}))
	assert.Error(t, ValidateChatRequest(&model.ChatRequest{Messages: []model.Message{{Role: "bot", Content: "x"}}}))
	assert.Error(t, ValidateChatRequest(&model.ChatRequest{Messages: []model.Message{{Role: model.RoleUser, Content: "\xff"}}}))
	assert.Error(t, ValidateChatRequest(&model.ChatRequest{ID: "a b", Messages: ok.Messages}))
}
