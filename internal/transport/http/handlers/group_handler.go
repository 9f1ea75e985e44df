package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/service"
	"github.com/mkrecak/backstage/internal/transport/http/middleware"
	"github.com/mkrecak/backstage/pkg/validator"
)

type GroupHandler struct {
	conversations *service.ConversationService
}

func NewGroupHandler(conversations *service.ConversationService) *GroupHandler {
	return &GroupHandler{conversations: conversations}
}

type createGroupInput struct {
	Name    string      `json:"name"`
	Members []uuid.UUID `json:"members"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())

	var input createGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateGroupName(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	conv, err := h.conversations.CreateGroup(r.Context(), caller, input.Members, input.Name)
	if err != nil {
		writeServiceError(w, "create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input service.UpdateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if input.Name != nil {
		if errs := validator.ValidateGroupName(*input.Name); errs.HasErrors() {
			writeValidationErrors(w, errs)
			return
		}
	}

	conv, err := h.conversations.UpdateGroup(r.Context(), groupID, caller, input)
	if err != nil {
		writeServiceError(w, "update group", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

type memberInput struct {
	Identity uuid.UUID `json:"identity"`
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input memberInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Identity == uuid.Nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.conversations.AddMember(r.Context(), groupID, caller, input.Identity); err != nil {
		writeServiceError(w, "add group member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}
	target, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid member ID")
		return
	}

	if err := h.conversations.RemoveMember(r.Context(), groupID, caller, target); err != nil {
		writeServiceError(w, "remove group member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input memberInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Identity == uuid.Nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.conversations.PromoteAdmin(r.Context(), groupID, caller, input.Identity); err != nil {
		writeServiceError(w, "promote admin", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}
	target, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid admin ID")
		return
	}

	if err := h.conversations.DemoteAdmin(r.Context(), groupID, caller, target); err != nil {
		writeServiceError(w, "demote admin", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
