package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/service"
	"github.com/mkrecak/backstage/internal/transport/http/middleware"
)

type ReactionHandler struct {
	reactions *service.ReactionService
}

func NewReactionHandler(reactions *service.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

type toggleReactionInput struct {
	Emoji string `json:"emoji"`
}

func (h *ReactionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var input toggleReactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.reactions.Toggle(r.Context(), messageID, caller, input.Emoji, originSession(r))
	if err != nil {
		writeServiceError(w, "toggle reaction", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ReactionHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	grouped, err := h.reactions.GetReactions(r.Context(), messageID, caller)
	if err != nil {
		writeServiceError(w, "list reactions", err)
		return
	}

	writeJSON(w, http.StatusOK, grouped)
}
