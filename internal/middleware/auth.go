package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/token"
)

// CookieName holds the auth token.
const CookieName = "JWT"

// PublicPrefixes are served without reading the cookie.
var PublicPrefixes = []string{
	"/auth/login",
	"/auth/register",
	"/auth/verify-email",
	"/auth/password-reset",
	"/auth/2fa",
	"/admin/register",
	"/health",
}

// Authenticate records the outcome of checking the auth cookie in the request
// context and always calls next. Handlers decide what an Anonymous or
// Rejected request may do through auth.Require.
func Authenticate(codec *token.Codec, logger *slog.Logger, publicPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, publicPrefixes) {
				next.ServeHTTP(w, r.WithContext(auth.WithResult(r.Context(), auth.Anonymous())))
				return
			}

			result := evaluate(codec, r)
			if result.State == auth.StateRejected {
				logger.Debug("auth token rejected", "path", r.URL.Path, "reason", result.Reason)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithResult(r.Context(), result)))
		})
	}
}

func evaluate(codec *token.Codec, r *http.Request) auth.Result {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return auth.Anonymous()
	}
	claims, err := codec.Validate(token.KindAuth, cookie.Value)
	if err != nil {
		return auth.Rejected(err)
	}
	p, err := claims.Principal()
	if err != nil {
		return auth.Rejected(err)
	}
	return auth.Authenticated(p)
}

func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// RequireCapability rejects requests whose principal lacks c.
func RequireCapability(c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.RequireCapability(r.Context(), c); err != nil {
				var ae *apperr.Error
				status := http.StatusForbidden
				if errors.As(err, &ae) {
					status = apperr.HTTPStatus(ae.Kind)
				}
				writeJSONError(w, status, apperr.PublicMessage(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
