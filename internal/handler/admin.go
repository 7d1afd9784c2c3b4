package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/membership"
)

type AdminHandler struct {
	members *membership.Coordinator
	logger  *slog.Logger
}

func NewAdminHandler(members *membership.Coordinator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{members: members, logger: logger}
}

func (h *AdminHandler) Invite(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireCapability(r.Context(), auth.CapInviteAdmin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.members.InviteAdmin(r.Context(), p, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.members.RegisterAdmin(r.Context(), req.Token, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireCapability(r.Context(), auth.CapRemoveAdmin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	admins, err := h.members.ListAdmins(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, admins)
}

func (h *AdminHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireCapability(r.Context(), auth.CapRemoveAdmin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	adminID, err := parseIDParam(r, "adminId")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid admin id"))
		return
	}

	if err := h.members.RemoveAdmin(r.Context(), p, adminID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
