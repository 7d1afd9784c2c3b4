package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/membership"
)

type HouseholdHandler struct {
	members *membership.Coordinator
	logger  *slog.Logger
}

func NewHouseholdHandler(members *membership.Coordinator, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{members: members, logger: logger}
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		Name      string  `json:"name" validate:"required,max=100"`
		Longitude float64 `json:"longitude" validate:"longitude"`
		Latitude  float64 `json:"latitude" validate:"latitude"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	household, err := h.members.CreateHousehold(r.Context(), p, req.Name, req.Longitude, req.Latitude)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

func (h *HouseholdHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := h.members.MyHousehold(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HouseholdHandler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	householdID, err := parseIDParam(r, "householdId")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid household id"))
		return
	}

	req, err := h.members.RequestToJoin(r.Context(), p, householdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *HouseholdHandler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	reqs, err := h.members.ListJoinRequests(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *HouseholdHandler) AcceptJoinRequest(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	requestID, err := parseIDParam(r, "requestId")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid request id"))
		return
	}

	req, err := h.members.AcceptJoinRequest(r.Context(), p, requestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *HouseholdHandler) DeclineJoinRequest(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	requestID, err := parseIDParam(r, "requestId")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid request id"))
		return
	}

	if err := h.members.DeclineJoinRequest(r.Context(), p, requestID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}
