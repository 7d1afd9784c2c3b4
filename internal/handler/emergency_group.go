package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/membership"
)

type EmergencyGroupHandler struct {
	members *membership.Coordinator
	logger  *slog.Logger
}

func NewEmergencyGroupHandler(members *membership.Coordinator, logger *slog.Logger) *EmergencyGroupHandler {
	return &EmergencyGroupHandler{members: members, logger: logger}
}

func (h *EmergencyGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.members.CreateEmergencyGroup(r.Context(), p, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *EmergencyGroupHandler) InviteHousehold(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	name := r.PathValue("householdName")
	if name == "" {
		writeError(w, h.logger, apperr.Validation("household name is required"))
		return
	}

	inv, err := h.members.InviteHouseholdByName(r.Context(), p, name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *EmergencyGroupHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	invs, err := h.members.ListGroupInvitations(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *EmergencyGroupHandler) AnswerInvitation(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	groupID, err := parseIDParam(r, "groupId")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid group id"))
		return
	}
	var req struct {
		IsAccept *bool `json:"is_accept" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.members.AnswerInvitation(r.Context(), p, groupID, *req.IsAccept); err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := "declined"
	if *req.IsAccept {
		status = "accepted"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
