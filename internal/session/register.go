package session

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

type RegisterInput struct {
	Email    string
	Name     string
	Password string
	// HouseholdID, when set, files a join request instead of creating a
	// household.
	HouseholdID *int64
}

// Registration is returned by Register. It never carries a session token.
type Registration struct {
	UserID        int64  `json:"user_id"`
	Email         string `json:"email"`
	HouseholdID   *int64 `json:"household_id,omitempty"`
	JoinRequestID *int64 `json:"join_request_id,omitempty"`
}

// Register creates an unverified user and mails a verification link.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	addr := normalizeEmail(in.Email)
	if err := validate.Var(addr, "required,email"); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	existing, err := s.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	reg := &Registration{Email: addr}
	err = s.store.InTx(ctx, func(tx *store.Store) error {
		nu := store.NewUser{Email: addr, Name: name, PasswordHash: hash, Role: auth.RoleNormal}

		if in.HouseholdID == nil {
			h, err := tx.Households.CreateUnique(ctx, name, 0, 0)
			if err != nil {
				return apperr.Upstream(err, "create household")
			}
			nu.HouseholdID = &h.ID
			reg.HouseholdID = &h.ID
		} else {
			h, err := tx.Households.GetByID(ctx, *in.HouseholdID)
			if err != nil {
				return apperr.Upstream(err, "load household")
			}
			if h == nil {
				return apperr.NotFound("household not found")
			}
		}

		u, err := tx.Users.Create(ctx, nu)
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("email already registered")
		}
		if err != nil {
			return apperr.Upstream(err, "create user")
		}
		reg.UserID = u.ID

		if in.HouseholdID != nil {
			req, err := tx.JoinRequests.Create(ctx, *in.HouseholdID, u.ID)
			if err != nil {
				return apperr.Upstream(err, "create join request")
			}
			reg.JoinRequestID = &req.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", reg.UserID)
	if err := s.sendVerification(ctx, addr); err != nil {
		return nil, err
	}
	return reg, nil
}

// ResendVerification mails a fresh verification link. Unknown and already
// verified addresses are ignored so the endpoint cannot be used to discover accounts.
func (s *Service) ResendVerification(ctx context.Context, addr string) error {
	u, err := s.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return apperr.Upstream(err, "load user")
	}
	if u == nil || u.Verified {
		return nil
	}
	return s.sendVerification(ctx, u.Email)
}

func (s *Service) sendVerification(ctx context.Context, addr string) error {
	tok, err := s.codec.Issue(token.KindEmailVerification, token.EmailVerificationClaims(addr))
	if err != nil {
		return apperr.Upstream(err, "issue verification token")
	}
	if err := s.mailer.SendTemplate(ctx, addr, email.TemplateVerifyEmail, email.Data{Link: s.link(verifyEmailPath, tok)}); err != nil {
		return apperr.Upstream(err, "send verification email")
	}
	return nil
}

// VerifyEmail marks the token's address as verified. A second use reports
// Conflict.
func (s *Service) VerifyEmail(ctx context.Context, tok string) (*model.User, error) {
	claims, err := s.codec.Validate(token.KindEmailVerification, tok)
	if err != nil {
		return nil, err
	}

	u, err := s.store.Users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	if u.Verified {
		return nil, apperr.Conflict("email already verified")
	}

	ok, err := s.store.Users.MarkVerified(ctx, u.ID)
	if err != nil {
		return nil, apperr.Upstream(err, "mark verified")
	}
	if !ok {
		return nil, apperr.Conflict("email already verified")
	}
	u.Verified = true

	s.logger.Info("email verified", "user_id", u.ID)
	return u, nil
}
