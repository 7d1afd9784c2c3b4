package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/membership"
)

type InvitationHandler struct {
	members *membership.Coordinator
	logger  *slog.Logger
}

func NewInvitationHandler(members *membership.Coordinator, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{members: members, logger: logger}
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
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

	inv, err := h.members.CreateInvitation(r.Context(), p, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Verify answers every failure with the same 404 so callers cannot tell a
// malformed token from a withdrawn invitation.
func (h *InvitationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	details, err := h.members.VerifyInvitation(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			h.logger.Error("verify invitation", "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invitation not found"})
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	household, err := h.members.AcceptInvitation(r.Context(), p, req.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}
