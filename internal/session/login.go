package session

import (
	"context"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

type Outcome int

const (
	// OutcomeAuthenticated carries an auth token.
	OutcomeAuthenticated Outcome = iota
	// OutcomeTwoFactorRequired means a confirmation link was mailed.
	OutcomeTwoFactorRequired
)

type LoginResult struct {
	Outcome Outcome
	Token   string
	User    *model.User
}

var errInvalidCredentials = apperr.Unauthenticated("invalid email or password")

// Login checks credentials. Privileged accounts get a two-factor link by
// email instead of a session.
func (s *Service) Login(ctx context.Context, addr, plain string) (*LoginResult, error) {
	u, err := s.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if u == nil {
		s.hasher.VerifyMissing(plain)
		return nil, errInvalidCredentials
	}
	if !s.hasher.Verify(plain, u.PasswordHash) {
		return nil, errInvalidCredentials
	}
	if !u.Verified {
		return nil, apperr.NotVerified("email address not verified")
	}

	if u.Role.Privileged() {
		tok, err := s.codec.Issue(token.KindTwoFactor, token.TwoFactorClaims(u.ID))
		if err != nil {
			return nil, apperr.Upstream(err, "issue two-factor token")
		}
		if err := s.mailer.SendTemplate(ctx, u.Email, email.TemplateTwoFactor, email.Data{Link: s.link(twoFactorPath, tok)}); err != nil {
			return nil, apperr.Upstream(err, "send two-factor email")
		}
		s.logger.Info("two-factor link sent", "user_id", u.ID)
		return &LoginResult{Outcome: OutcomeTwoFactorRequired, User: u}, nil
	}

	tok, err := s.codec.Issue(token.KindAuth, token.AuthClaims(u.ID, u.Role))
	if err != nil {
		return nil, apperr.Upstream(err, "issue auth token")
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	return &LoginResult{Outcome: OutcomeAuthenticated, Token: tok, User: u}, nil
}

// VerifyTwoFactor redeems a two-factor link for a session carrying the
// account's stored role.
func (s *Service) VerifyTwoFactor(ctx context.Context, tok string) (*LoginResult, error) {
	claims, err := s.codec.Validate(token.KindTwoFactor, tok)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, apperr.InvalidToken("invalid token", token.ErrMissingClaim)
	}

	u, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	if !u.Role.Privileged() {
		return nil, apperr.Forbidden("two-factor login is only for administrators")
	}

	authTok, err := s.codec.Issue(token.KindAuth, token.AuthClaims(u.ID, u.Role))
	if err != nil {
		return nil, apperr.Upstream(err, "issue auth token")
	}
	s.logger.Info("two-factor verified", "user_id", u.ID, "role", u.Role.String())
	return &LoginResult{Outcome: OutcomeAuthenticated, Token: authTok, User: u}, nil
}

// Me returns the principal's user row.
func (s *Service) Me(ctx context.Context, p auth.Principal) (*model.User, error) {
	u, err := s.store.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

// EnsureSuperAdmin creates a verified super admin for addr if no account
// uses that address yet. It reports whether one was created.
func (s *Service) EnsureSuperAdmin(ctx context.Context, addr, plain string) (bool, error) {
	addr = normalizeEmail(addr)
	if addr == "" {
		return false, nil
	}
	existing, err := s.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return false, apperr.Upstream(err, "load user")
	}
	if existing != nil {
		if existing.Role != auth.RoleSuperAdmin {
			s.logger.Warn("super admin email belongs to a non super admin account", "user_id", existing.ID)
		}
		return false, nil
	}
	hash, err := s.hash(plain)
	if err != nil {
		return false, err
	}
	u, err := s.store.Users.Create(ctx, store.NewUser{
		Email:        addr,
		Name:         "superadmin",
		PasswordHash: hash,
		Role:         auth.RoleSuperAdmin,
		Verified:     true,
	})
	if err != nil {
		return false, apperr.Upstream(err, "create super admin")
	}
	s.logger.Info("super admin created", "user_id", u.ID)
	return true, nil
}
