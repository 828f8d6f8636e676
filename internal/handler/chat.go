package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/middleware"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/service"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

const (
	// ConversationIDHeader names the conversation the reply belongs to.
	ConversationIDHeader = "X-Conversation-ID"

	// StreamStatusTrailer reports whether the reply ran to completion.
	StreamStatusTrailer = "X-Stream-Status"

	StreamComplete  = "complete"
	StreamTruncated = "truncated"
)

// ChatHandler relays completions to the caller.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log,
	}
}

// Chat handles POST /api/chat.
//
// The reply is streamed as text/plain and flushed per chunk. Headers are
// only sent with the first chunk, so a provider failure before that still
// yields a clean 500. The X-Stream-Status trailer tells a complete reply
// from one cut short by a provider failure.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		middleware.Unauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes)
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if err := middleware.ValidateChatRequest(&req); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = service.NewConversationID()
	}

	sw := newStreamWriter(w, req.ID)
	res, err := h.chat.Stream(ctx, userID, &req, sw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			middleware.Unauthorized(w)
		case errors.Is(err, service.ErrInvalidRequest):
			writeText(w, http.StatusBadRequest, err.Error())
		case sw.started:
			sw.finish(StreamTruncated)
		default:
			h.logger.Error("chat relay failed",
				zap.String("correlation_id", logger.CorrelationID(ctx)),
				zap.Error(err),
			)
			writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	if res.Truncated {
		sw.finish(StreamTruncated)
		return
	}
	sw.finish(StreamComplete)
}

// streamWriter writes chunks to the response, sending headers lazily.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	id      string
	started bool
}

func newStreamWriter(w http.ResponseWriter, conversationID string) *streamWriter {
	return &streamWriter{
		w:  w,
		rc: http.NewResponseController(w),
		id: conversationID,
	}
}

func (s *streamWriter) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set(ConversationIDHeader, s.id)
	h.Set("Trailer", StreamStatusTrailer)
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// WriteChunk implements service.ChunkWriter.
func (s *streamWriter) WriteChunk(chunk string) error {
	if !s.started {
		s.start()
	}
	if _, err := io.WriteString(s.w, chunk); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (s *streamWriter) finish(status string) {
	if !s.started {
		s.start()
	}
	s.w.Header().Set(StreamStatusTrailer, status)
}
