// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/middleware"
	"github.com/capitalize-ai/campus-chat/internal/service"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/chats
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	convs, err := h.service.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.fail(w, r, "failed to list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

// Clear handles DELETE /api/chats
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.Clear(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.fail(w, r, "failed to clear conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Get handles GET /api/chats/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		h.fail(w, r, "failed to get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/chats/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(ctx, middleware.GetUserID(ctx), id); err != nil {
		h.fail(w, r, "failed to delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Share handles POST /api/chats/{id}/share
func (h *ConversationHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := h.service.Share(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		h.fail(w, r, "failed to share conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// SharedView handles GET /share/{id}, the public read of a shared
// conversation.
func (h *ConversationHandler) SharedView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	payload, err := h.service.GetShared(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to get shared conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, service.ErrUnauthorized):
		middleware.Unauthorized(w)
	default:
		h.logger.Error(msg,
			zap.String("correlation_id", logger.CorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
