package membership

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

// ErrUsernameExhausted is reported when every generated admin username was
// already taken.
var ErrUsernameExhausted = errors.New("admin username generation exhausted")

var errUsernameTaken = errors.New("admin username taken")

const usernamePrefix = "admin-"

var usernameEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// randomUsername returns "admin-" followed by 8 base32 characters.
func randomUsername() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return usernamePrefix + strings.ToLower(usernameEncoding.EncodeToString(b)), nil
}

// AdminInvite is the result of InviteAdmin.
type AdminInvite struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// InviteAdmin reserves a fresh admin username and mails addr an invitation
// bound to it.
func (c *Coordinator) InviteAdmin(ctx context.Context, actor auth.Principal, addr string) (*AdminInvite, error) {
	if !actor.Role.Can(auth.CapInviteAdmin) {
		return nil, apperr.Forbidden("insufficient role")
	}
	addr = normalizeEmail(addr)
	if err := validate.Var(addr, "required,email"); err != nil {
		return nil, apperr.Validation("invalid email address")
	}

	existing, err := c.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	username, err := c.generateUsername(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := c.codec.Issue(token.KindAdminInvite, token.AdminInviteClaims(username))
	if err != nil {
		return nil, apperr.Upstream(err, "issue admin invite token")
	}
	if err := c.mailer.SendTemplate(ctx, addr, email.TemplateAdminInvite, email.Data{
		Link:     c.link(invitePath, tok),
		Username: username,
	}); err != nil {
		return nil, apperr.Upstream(err, "send admin invitation email")
	}

	c.logger.Info("admin invited", "username", username, "invited_by", actor.UserID)
	return &AdminInvite{Email: addr, Username: username}, nil
}

func (c *Coordinator) generateUsername(ctx context.Context) (string, error) {
	var username string
	attempts := 0
	backoff := retry.WithMaxRetries(c.usernameAttempts-1, retry.NewConstant(time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		candidate, err := c.newUsername()
		if err != nil {
			return err
		}
		taken, err := c.store.Users.AdminNameExists(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			c.logger.Debug("admin username collision", "username", candidate, "attempt", attempts)
			return retry.RetryableError(errUsernameTaken)
		}
		username = candidate
		return nil
	})
	if errors.Is(err, errUsernameTaken) {
		c.logger.Error("admin username generation exhausted", "attempts", attempts)
		return "", apperr.Upstream(ErrUsernameExhausted, "generate admin username")
	}
	if err != nil {
		return "", apperr.Upstream(err, "generate admin username")
	}
	return username, nil
}

// RegisterAdmin redeems an admin invitation. The username bound to the token
// can be registered once.
func (c *Coordinator) RegisterAdmin(ctx context.Context, tok, addr, plain string) (*model.User, error) {
	claims, err := c.codec.Validate(token.KindAdminInvite, tok)
	if err != nil {
		return nil, err
	}
	username := claims.Subject

	addr = normalizeEmail(addr)
	if err := validate.Var(addr, "required,email"); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if err := password.Validate(plain); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	taken, err := c.store.Users.AdminNameExists(ctx, username)
	if err != nil {
		return nil, apperr.Upstream(err, "check admin username")
	}
	if taken {
		return nil, apperr.Conflict("invitation has already been used")
	}
	existing, err := c.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, apperr.Upstream(err, "load user")
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := c.hasher.Hash(plain)
	if err != nil {
		return nil, apperr.Upstream(err, "hash password")
	}

	var u *model.User
	err = c.store.InTx(ctx, func(tx *store.Store) error {
		h, err := tx.Households.CreateUnique(ctx, username, 0, 0)
		if err != nil {
			return apperr.Upstream(err, "create household")
		}
		u, err = tx.Users.Create(ctx, store.NewUser{
			Email:        addr,
			Name:         username,
			PasswordHash: hash,
			HouseholdID:  &h.ID,
			Role:         auth.RoleAdmin,
			Verified:     true,
		})
		if isDuplicate(err) {
			return apperr.Conflict("invitation has already been used")
		}
		if err != nil {
			return apperr.Upstream(err, "create admin")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("admin registered", "user_id", u.ID, "username", username)
	return u, nil
}

func (c *Coordinator) ListAdmins(ctx context.Context, actor auth.Principal) ([]model.User, error) {
	if !actor.Role.Can(auth.CapRemoveAdmin) {
		return nil, apperr.Forbidden("insufficient role")
	}
	admins, err := c.store.Users.ListByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, apperr.Upstream(err, "list admins")
	}
	if admins == nil {
		admins = []model.User{}
	}
	return admins, nil
}

// RemoveAdmin deletes an ADMIN account. Super admins cannot be removed here.
func (c *Coordinator) RemoveAdmin(ctx context.Context, actor auth.Principal, adminID int64) error {
	if !actor.Role.Can(auth.CapRemoveAdmin) {
		return apperr.Forbidden("insufficient role")
	}
	removed, err := c.store.Users.DeleteWithRole(ctx, adminID, auth.RoleAdmin)
	if err != nil {
		return apperr.Upstream(err, "delete admin")
	}
	if !removed {
		return apperr.NotFound("admin not found")
	}
	c.logger.Info("admin removed", "admin_id", adminID, "removed_by", actor.UserID)
	return nil
}
