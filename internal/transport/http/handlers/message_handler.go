package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/service"
	"github.com/mkrecak/backstage/internal/transport/http/middleware"
	"github.com/mkrecak/backstage/pkg/validator"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// originSession reads the caller's websocket session ID, used to suppress
// the echo of their own event. Absent or malformed yields uuid.Nil, which
// excludes nothing.
func originSession(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get("X-Session-ID"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateMessage(input.Content, input.MediaRef != nil); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messages.Send(r.Context(), caller, conversationID, input, originSession(r))
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var before *uuid.UUID
	if raw := r.URL.Query().Get("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid cursor")
			return
		}
		before = &id
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	resp, err := h.messages.History(r.Context(), conversationID, caller, before, limit)
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	count, err := h.messages.UnreadCount(r.Context(), conversationID, caller)
	if err != nil {
		writeServiceError(w, "unread count", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messages.MarkRead(r.Context(), messageID, caller, originSession(r)); err != nil {
		writeServiceError(w, "mark read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
