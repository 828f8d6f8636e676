package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/campus-chat/internal/account"
	"github.com/capitalize-ai/campus-chat/internal/middleware"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

// RouterConfig carries the handlers and settings the router mounts.
type RouterConfig struct {
	Chat          *ChatHandler
	Conversations *ConversationHandler
	Auth          *AuthHandler
	Health        *HealthHandler
	Tokens        *account.Tokens
	Logger        *logger.Logger

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecureHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Tokens))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/share/{id}", cfg.Conversations.SharedView)

		r.Route("/api", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/sign-up", cfg.Auth.SignUp)
				r.Post("/sign-in", cfg.Auth.SignIn)
				r.Post("/sign-out", cfg.Auth.SignOut)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)

				r.Post("/chat", cfg.Chat.Chat)

				r.Route("/chats", func(r chi.Router) {
					r.Get("/", cfg.Conversations.List)
					r.Delete("/", cfg.Conversations.Clear)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.Conversations.Get)
						r.Delete("/", cfg.Conversations.Delete)
						r.Post("/share", cfg.Conversations.Share)
					})
				})
			})
		})
	})

	return r
}
