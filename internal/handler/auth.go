package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/middleware"
	"github.com/dukerupert/preppr/internal/session"
)

type AuthHandler struct {
	sessions     *session.Service
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(sessions *session.Service, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, secureCookie: secureCookie, logger: logger}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, tok string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email" validate:"required,email"`
		Name        string `json:"name" validate:"required,max=100"`
		Password    string `json:"password" validate:"required"`
		HouseholdID *int64 `json:"household_id" validate:"omitempty,gt=0"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.sessions.Register(r.Context(), session.RegisterInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		HouseholdID: req.HouseholdID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if res.Outcome == session.OutcomeTwoFactorRequired {
		writeJSON(w, http.StatusAccepted, map[string]any{"two_factor_required": true})
		return
	}
	h.setSessionCookie(w, res.Token, h.sessions.SessionTTL())
	writeJSON(w, http.StatusOK, map[string]any{"user": res.User, "role": res.User.Role.String()})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		writeError(w, h.logger, apperr.Validation("token is required"))
		return
	}
	u, err := h.sessions.VerifyEmail(r.Context(), tok)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sessions.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sessions.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sessions.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.sessions.VerifyTwoFactor(r.Context(), req.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token, h.sessions.SessionTTL())
	writeJSON(w, http.StatusOK, map[string]any{"user": res.User, "role": res.User.Role.String()})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Require(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.sessions.Me(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "role": p.Role.String()})
}
