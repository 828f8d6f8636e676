package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/events"
	"github.com/capitalize-ai/campus-chat/internal/llm"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
	"github.com/capitalize-ai/campus-chat/pkg/metrics"
	"github.com/capitalize-ai/campus-chat/pkg/tracing"
)

var (
	// ErrUnauthorized is returned when the request carries no owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest is returned for malformed chat requests.
	ErrInvalidRequest = errors.New("invalid chat request")

	// ErrUpstream is returned when the provider fails before any chunk
	// reached the caller.
	ErrUpstream = errors.New("completion provider failed")
)

// DefaultUpstreamTimeout bounds a provider stream when none is configured.
const DefaultUpstreamTimeout = 5 * time.Minute

// ChunkWriter receives the assistant reply as it is generated.
type ChunkWriter interface {
	WriteChunk(chunk string) error
}

// ChunkWriterFunc adapts a function to ChunkWriter.
type ChunkWriterFunc func(chunk string) error

// WriteChunk implements ChunkWriter.
func (f ChunkWriterFunc) WriteChunk(chunk string) error { return f(chunk) }

// Submitter accepts finished conversations for deferred persistence.
type Submitter interface {
	Submit(ctx context.Context, conv *model.Conversation)
}

// StreamResult describes a relayed completion.
type StreamResult struct {
	ConversationID string
	// Truncated is set when the provider failed after the first chunk.
	// Nothing is persisted for a truncated stream.
	Truncated bool
	// CallerGone is set when writes to the caller started failing.
	CallerGone bool
	TokensIn   int
	TokensOut  int
}

// ChatConfig holds completion parameters.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	UpstreamTimeout time.Duration
}

// ChatService relays provider completions to callers and hands each
// completed exchange to the persister.
type ChatService struct {
	llm       llm.Client
	persister Submitter
	events    events.Publisher
	cfg       ChatConfig
	logger    *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewChatService creates a new chat service. A nil publisher disables events.
func NewChatService(client llm.Client, persister Submitter, pub events.Publisher, cfg ChatConfig, log *logger.Logger) *ChatService {
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	return &ChatService{
		llm:       client,
		persister: persister,
		events:    pub,
		cfg:       cfg,
		logger:    log.Named("chat"),
		tracer:    tracing.Tracer("campus-chat/chat"),
		now:       time.Now,
	}
}

// NewConversationID returns a fresh conversation identifier.
func NewConversationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Stream relays a completion for req to w, chunk by chunk, and on
// end-of-stream submits the full conversation for persistence exactly once.
//
// The provider call does not inherit ctx's cancellation: if the caller goes
// away, writes are dropped but generation continues so the exchange is still
// stored.
func (s *ChatService) Stream(ctx context.Context, userID string, req *model.ChatRequest, w ChunkWriter) (*StreamResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateChatRequest(req); err != nil {
		return nil, err
	}

	convID := req.ID
	if convID == "" {
		convID = NewConversationID()
	}

	log := s.logger.WithConversation(logger.CorrelationID(ctx), userID, convID)

	ctx, span := s.tracer.Start(ctx, "chat.Stream", trace.WithAttributes(
		attribute.String("conversation.id", convID),
		attribute.Int("chat.messages", len(req.Messages)),
		attribute.String("llm.provider", s.llm.Name()),
	))
	defer span.End()

	upstreamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpstreamTimeout)
	defer cancel()

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	result := &StreamResult{ConversationID: convID}
	var reply strings.Builder
	chunks := 0

	start := s.now()
	resp, err := s.llm.CompleteStream(upstreamCtx, s.completionRequest(req), func(chunk string, _ int) error {
		chunks++
		reply.WriteString(chunk)
		if result.CallerGone {
			return nil
		}
		if err := w.WriteChunk(chunk); err != nil {
			result.CallerGone = true
			log.Info("caller disconnected, continuing generation", zap.Error(err))
		}
		return nil
	})
	elapsed := s.now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordLLMStream(s.llm.Name(), s.model(), "error", elapsed.Seconds(), 0, 0)

		ev := events.New(model.EventTypeStreamFailed, userID, convID)
		ev.Reason = err.Error()
		ev.Metadata = map[string]any{"chunks": chunks}
		events.Emit(ctx, s.events, log, ev)

		if chunks == 0 {
			log.Error("completion failed before streaming", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}

		log.Warn("completion stream truncated", zap.Error(err), zap.Int("chunks", chunks))
		result.Truncated = true
		return result, nil
	}

	result.TokensIn = resp.TokensIn
	result.TokensOut = resp.TokensOut
	metrics.RecordLLMStream(s.llm.Name(), s.model(), "success", elapsed.Seconds(), resp.TokensIn, resp.TokensOut)
	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)

	s.persister.Submit(ctx, s.buildConversation(convID, userID, req.Messages, reply.String()))

	log.Info("completion relayed",
		zap.Int("chunks", chunks),
		zap.Duration("duration", elapsed),
		zap.Bool("caller_gone", result.CallerGone),
	)
	return result, nil
}

func (s *ChatService) model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	if models := s.llm.Models(); len(models) > 0 {
		return models[0]
	}
	return ""
}

func (s *ChatService) completionRequest(req *model.ChatRequest) *llm.CompletionRequest {
	msgs := make([]llm.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = llm.ChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return &llm.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		APIKey:      req.PreviewToken,
	}
}

func (s *ChatService) buildConversation(id, userID string, prior []model.Message, reply string) *model.Conversation {
	msgs := make([]model.Message, 0, len(prior)+1)
	msgs = append(msgs, prior...)
	msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: reply})

	return &model.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     model.NewTitle(prior),
		CreatedAt: s.now().UnixMilli(),
		Path:      model.ChatPath(id),
		Messages:  msgs,
	}
}

func validateChatRequest(req *model.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages cannot be empty", ErrInvalidRequest)
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
