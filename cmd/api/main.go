// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/account"
	"github.com/capitalize-ai/campus-chat/internal/config"
	"github.com/capitalize-ai/campus-chat/internal/events"
	"github.com/capitalize-ai/campus-chat/internal/handler"
	"github.com/capitalize-ai/campus-chat/internal/llm"
	natsclient "github.com/capitalize-ai/campus-chat/internal/nats"
	"github.com/capitalize-ai/campus-chat/internal/persist"
	"github.com/capitalize-ai/campus-chat/internal/service"
	"github.com/capitalize-ai/campus-chat/internal/store"
	"github.com/capitalize-ai/campus-chat/internal/store/memory"
	"github.com/capitalize-ai/campus-chat/internal/store/redisstore"
	"github.com/capitalize-ai/campus-chat/internal/store/sqlstore"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
	"github.com/capitalize-ai/campus-chat/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server",
		zap.String("store", cfg.Store.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	ctx := context.Background()
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, "campus-chat", cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	var publisher events.Publisher = events.Nop{}
	var natsClient *natsclient.Client
	if cfg.NATS.URL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATS.URL,
			CAFile:   cfg.NATS.CAFile,
			CertFile: cfg.NATS.CertFile,
			KeyFile:  cfg.NATS.KeyFile,
			Token:    cfg.NATS.Token,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		bus := natsclient.NewEventBus(natsClient)
		if err := bus.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		publisher = bus
	} else {
		log.Info("NATS_URL not set, conversation events disabled")
	}

	llmClient, err := llm.NewClient(llm.Provider(cfg.LLM.Provider), llm.Options{
		APIKey:  providerKey(cfg.LLM),
		BaseURL: cfg.LLM.OpenAIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	persister := persist.New(st, publisher, log, cfg.Persist.Timeout)

	chatSvc := service.NewChatService(llmClient, persister, publisher, service.ChatConfig{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		UpstreamTimeout: cfg.LLM.UpstreamTimeout,
	}, log)
	conversationSvc := service.NewConversationService(st, publisher, log)

	tokens := account.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	accounts := account.NewService(st, tokens, account.Config{
		EmailDomainSuffix: cfg.Auth.EmailDomainSuffix,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, log)

	checks := map[string]handler.Pinger{"store": st}
	if natsClient != nil {
		checks["nats"] = natsClient
	}

	router := handler.NewRouter(handler.RouterConfig{
		Chat:              handler.NewChatHandler(chatSvc, log),
		Conversations:     handler.NewConversationHandler(conversationSvc, log),
		Auth:              handler.NewAuthHandler(accounts, cfg.Auth.CookieSecure, log),
		Health:            handler.NewHealthHandler(checks),
		Tokens:            tokens,
		Logger:            log,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Relays still finishing after Shutdown returns have already submitted
	// their writes; wait for them before the store goes away.
	persister.Close()

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		return sqlstore.OpenSQLite(cfg.SQLitePath)
	case config.StorePostgres:
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN, sqlstore.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case config.StoreRedis:
		return redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func providerKey(cfg config.LLM) string {
	if llm.Provider(cfg.Provider) == llm.ProviderAnthropic {
		return cfg.AnthropicAPIKey
	}
	return cfg.OpenAIAPIKey
}
