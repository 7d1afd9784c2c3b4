package membership

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
)

const invitePath = "/invite"

// InvitationDetails is what an invitee sees before accepting.
type InvitationDetails struct {
	HouseholdID   int64     `json:"household_id"`
	HouseholdName string    `json:"household_name"`
	InvitedEmail  string    `json:"invited_email"`
	InvitedBy     string    `json:"invited_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateInvitation invites addr to the actor's household by email. Earlier
// pending invitations of the same address to the same household are
// replaced.
func (c *Coordinator) CreateInvitation(ctx context.Context, actor auth.Principal, addr string) (*model.HouseholdInvitation, error) {
	addr = normalizeEmail(addr)
	if err := validate.Var(addr, "required,email"); err != nil {
		return nil, apperr.Validation("invalid email address")
	}

	u, err := actingUser(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	if u.HouseholdID == nil {
		return nil, apperr.UnauthorizedAction("you must belong to a household to invite members")
	}
	h, err := c.store.Households.GetByID(ctx, *u.HouseholdID)
	if err != nil {
		return nil, apperr.Upstream(err, "load household")
	}
	if h == nil {
		return nil, apperr.NotFound("household not found")
	}

	invitee, err := c.store.Users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, apperr.Upstream(err, "load invitee")
	}
	if invitee != nil && invitee.InHousehold(h.ID) {
		return nil, apperr.Conflict("user is already a member of this household")
	}

	tok, err := c.codec.Issue(token.KindHouseholdInvite, token.HouseholdInviteClaims(addr, h.ID))
	if err != nil {
		return nil, apperr.Upstream(err, "issue invitation token")
	}

	var inv *model.HouseholdInvitation
	err = c.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := tx.Invitations.DeletePending(ctx, h.ID, addr); err != nil {
			return apperr.Upstream(err, "replace pending invitations")
		}
		var err error
		inv, err = tx.Invitations.Create(ctx, h.ID, u.ID, addr, tok)
		if err != nil {
			return apperr.Upstream(err, "create invitation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.mailer.SendTemplate(ctx, addr, email.TemplateHouseholdInvite, email.Data{
		Link:          c.link(invitePath, tok),
		HouseholdName: h.Name,
	}); err != nil {
		return nil, apperr.Upstream(err, "send invitation email")
	}

	c.logger.Info("household invitation created", "invitation_id", inv.ID, "household_id", h.ID, "invited_by", u.ID)
	c.publishHousehold(h.ID, "household_invitation", "created", inv.ID, map[string]any{"email": addr})
	return inv, nil
}

// VerifyInvitation resolves an invitation token without changing anything.
func (c *Coordinator) VerifyInvitation(ctx context.Context, tok string) (*InvitationDetails, error) {
	claims, err := c.codec.Validate(token.KindHouseholdInvite, tok)
	if err != nil {
		return nil, err
	}

	inv, err := c.store.Invitations.GetByToken(ctx, tok)
	if err != nil {
		return nil, apperr.Upstream(err, "load invitation")
	}
	if inv == nil || inv.HouseholdID != claims.HouseholdID {
		return nil, apperr.NotFound("invitation not found")
	}

	h, err := c.store.Households.GetByID(ctx, inv.HouseholdID)
	if err != nil {
		return nil, apperr.Upstream(err, "load household")
	}
	if h == nil {
		return nil, apperr.NotFound("invitation not found")
	}

	details := &InvitationDetails{
		HouseholdID:   h.ID,
		HouseholdName: h.Name,
		InvitedEmail:  inv.InvitedEmail,
		CreatedAt:     inv.CreatedAt,
	}
	if inv.InvitedByUserID != nil {
		by, err := c.store.Users.GetByID(ctx, *inv.InvitedByUserID)
		if err != nil {
			return nil, apperr.Upstream(err, "load inviter")
		}
		if by != nil {
			details.InvitedBy = by.Name
		}
	}
	return details, nil
}

// AcceptInvitation consumes the invitation and moves the actor into the
// household named by the token. The actor must own the invited address.
func (c *Coordinator) AcceptInvitation(ctx context.Context, actor auth.Principal, tok string) (*model.Household, error) {
	claims, err := c.codec.Validate(token.KindHouseholdInvite, tok)
	if err != nil {
		return nil, err
	}

	var h *model.Household
	err = c.store.InTx(ctx, func(tx *store.Store) error {
		u, err := actingUser(ctx, tx, actor)
		if err != nil {
			return err
		}
		if normalizeEmail(u.Email) != normalizeEmail(claims.Subject) {
			return apperr.UnauthorizedAction("invitation was sent to a different email address")
		}

		inv, err := tx.Invitations.ConsumeByToken(ctx, tok)
		if err != nil {
			return apperr.Upstream(err, "consume invitation")
		}
		// The token is authoritative; a row that disagrees with it is treated
		// as gone.
		if inv == nil || inv.HouseholdID != claims.HouseholdID {
			return apperr.NotFound("invitation not found")
		}

		h, err = tx.Households.GetByID(ctx, claims.HouseholdID)
		if err != nil {
			return apperr.Upstream(err, "load household")
		}
		if h == nil {
			return apperr.NotFound("household not found")
		}
		if _, err := tx.Users.SetHousehold(ctx, u.ID, h.ID); err != nil {
			return apperr.Upstream(err, "join household")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("household invitation accepted", "household_id", h.ID, "user_id", actor.UserID)
	c.publishHousehold(h.ID, "member", "joined", actor.UserID, nil)
	return h, nil
}

// PurgeExpiredInvitations deletes invitations whose token has expired.
func (c *Coordinator) PurgeExpiredInvitations(ctx context.Context) (int64, error) {
	n, err := c.store.Invitations.DeleteOlderThan(ctx, c.codec.TTL(token.KindHouseholdInvite))
	if err != nil {
		return 0, apperr.Upstream(err, "purge invitations")
	}
	return n, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicate)
}
