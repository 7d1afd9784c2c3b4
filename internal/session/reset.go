package session

import (
	"context"
	"errors"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/token"
)

// ErrTokenUsed marks a reset token whose password has already changed.
var ErrTokenUsed = errors.New("token has already been used")

// RequestPasswordReset mails a reset link. Unknown addresses are ignored.
func (s *Service) RequestPasswordReset(ctx context.Context, addr string) error {
	u, err := s.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return apperr.Upstream(err, "load user")
	}
	if u == nil {
		return nil
	}

	tok, err := s.codec.Issue(token.KindPasswordReset, token.PasswordResetClaims(u.Email, password.Fingerprint(u.PasswordHash)))
	if err != nil {
		return apperr.Upstream(err, "issue reset token")
	}
	if err := s.mailer.SendTemplate(ctx, u.Email, email.TemplatePasswordReset, email.Data{Link: s.link(resetPasswordPath, tok)}); err != nil {
		return apperr.Upstream(err, "send reset email")
	}
	s.logger.Info("password reset requested", "user_id", u.ID)
	return nil
}

// ResetPassword replaces the password. The token stops validating once the
// password it was issued against has changed.
func (s *Service) ResetPassword(ctx context.Context, tok, plain string) error {
	claims, err := s.codec.Validate(token.KindPasswordReset, tok)
	if err != nil {
		return err
	}
	u, err := s.store.Users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return apperr.Upstream(err, "load user")
	}
	if u == nil || password.Fingerprint(u.PasswordHash) != claims.PasswordFingerprint {
		return apperr.InvalidToken("token has already been used", ErrTokenUsed)
	}

	hash, err := s.hash(plain)
	if err != nil {
		return err
	}
	ok, err := s.store.Users.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, hash)
	if err != nil {
		return apperr.Upstream(err, "update password")
	}
	if !ok {
		return apperr.InvalidToken("token has already been used", ErrTokenUsed)
	}

	s.logger.Info("password reset", "user_id", u.ID)
	return nil
}
