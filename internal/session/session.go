// Package session implements registration, login, email verification,
// password reset and the admin two-factor step.
package session

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

const (
	verifyEmailPath   = "/verify-email"
	resetPasswordPath = "/reset-password"
	twoFactorPath     = "/admin/verify"
)

var validate = validator.New()

type Config struct {
	// FrontendURL is the base of links sent by email.
	FrontendURL string
}

type Service struct {
	store       *store.Store
	codec       *token.Codec
	hasher      *password.Hasher
	mailer      email.Mailer
	logger      *slog.Logger
	frontendURL string
}

func New(st *store.Store, codec *token.Codec, hasher *password.Hasher, mailer email.Mailer, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:       st,
		codec:       codec,
		hasher:      hasher,
		mailer:      mailer,
		logger:      logger.With("component", "session"),
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// SessionTTL is the lifetime of an auth token.
func (s *Service) SessionTTL() time.Duration {
	return s.codec.TTL(token.KindAuth)
}

func (s *Service) link(path, tok string) string {
	return s.frontendURL + path + "?token=" + url.QueryEscape(tok)
}

// hash applies the password policy while hashing. Policy failures are the
// caller's fault, anything else is upstream.
func (s *Service) hash(plain string) (string, error) {
	h, err := s.hasher.Hash(plain)
	if password.IsPolicyError(err) {
		return "", apperr.Validation(err.Error())
	}
	if err != nil {
		return "", apperr.Upstream(err, "hash password")
	}
	return h, nil
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
