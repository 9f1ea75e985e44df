package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/service"
	"github.com/mkrecak/backstage/internal/transport/http/middleware"
	"github.com/mkrecak/backstage/pkg/validator"
)

// PresenceReader reports which of the given identities currently hold a
// live session. Implemented by the websocket hub.
type PresenceReader interface {
	OnlineOf(identities []uuid.UUID) []uuid.UUID
}

type ConversationHandler struct {
	conversations *service.ConversationService
	presence      PresenceReader
}

func NewConversationHandler(conversations *service.ConversationService, presence PresenceReader) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, presence: presence}
}

type createDirectInput struct {
	Identity uuid.UUID `json:"identity"`
}

// CreateDirect finds or creates the 1:1 conversation with another identity.
func (h *ConversationHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())

	var input createDirectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Identity == uuid.Nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	conv, err := h.conversations.CreateDirect(r.Context(), caller, input.Identity)
	if err != nil {
		writeServiceError(w, "create direct conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())

	convs, err := h.conversations.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	conv, err := h.conversations.Get(r.Context(), caller, conversationID)
	if err != nil {
		writeServiceError(w, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	if err := h.conversations.Archive(r.Context(), conversationID, caller); err != nil {
		writeServiceError(w, "archive conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Presence returns the participants of a conversation that currently have
// a live session.
func (h *ConversationHandler) Presence(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	conv, err := h.conversations.Get(r.Context(), caller, conversationID)
	if err != nil {
		writeServiceError(w, "conversation presence", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"online": h.presence.OnlineOf(conv.Participants),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// writeServiceError maps the service sentinels onto the error taxonomy.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrTargetNotMember):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrNotAdmin):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, service.ErrSelfConversation),
		errors.Is(err, service.ErrGroupFull),
		errors.Is(err, service.ErrTooFewMembers),
		errors.Is(err, service.ErrNotGroup),
		errors.Is(err, service.ErrInvalidEmoji):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrLastAdmin),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrArchived):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, service.ErrPersistTimeout):
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		log.Printf("ERROR %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
