package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/service"
)

// FanoutHandler accepts broadcast jobs from trusted internal callers, e.g.
// a creator tools service announcing a live stream to every follower.
type FanoutHandler struct {
	fanout *service.FanoutService
}

func NewFanoutHandler(fanout *service.FanoutService) *FanoutHandler {
	return &FanoutHandler{fanout: fanout}
}

type fanoutInput struct {
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Audience []uuid.UUID     `json:"audience"`
}

func (h *FanoutHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var input fanoutInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Kind == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Event kind is required")
		return
	}

	event := domain.FanOutEvent{Kind: input.Kind, Payload: input.Payload}
	if err := h.fanout.FanOut(r.Context(), service.StaticAudience(input.Audience), event); err != nil {
		writeServiceError(w, "fanout", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"audience": len(input.Audience),
	})
}
