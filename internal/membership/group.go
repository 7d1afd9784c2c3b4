package membership

import (
	"context"
	"strings"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/store"
)

// PendingGroupInvitation is an invitation of the actor's household together
// with the inviting group's name.
type PendingGroupInvitation struct {
	model.EmergencyGroupInvitation
	GroupName string `json:"group_name"`
}

// CreateEmergencyGroup creates a group with the actor's household as its
// first member.
func (c *Coordinator) CreateEmergencyGroup(ctx context.Context, actor auth.Principal, name string) (*model.EmergencyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}

	var g *model.EmergencyGroup
	err := c.store.InTx(ctx, func(tx *store.Store) error {
		_, h, err := actingHousehold(ctx, tx, actor)
		if err != nil {
			return err
		}
		if h.EmergencyGroupID != nil {
			return apperr.Conflict("household already belongs to an emergency group")
		}

		g, err = tx.Groups.Create(ctx, name)
		if isDuplicate(err) {
			return apperr.Conflict("emergency group name already taken")
		}
		if err != nil {
			return apperr.Upstream(err, "create emergency group")
		}

		ok, err := tx.Households.JoinEmergencyGroup(ctx, h.ID, g.ID)
		if err != nil {
			return apperr.Upstream(err, "join emergency group")
		}
		if !ok {
			return apperr.Conflict("household already belongs to an emergency group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("emergency group created", "group_id", g.ID, "user_id", actor.UserID)
	return g, nil
}

// InviteHouseholdByName invites the named household into the actor's
// emergency group.
func (c *Coordinator) InviteHouseholdByName(ctx context.Context, actor auth.Principal, name string) (*model.EmergencyGroupInvitation, error) {
	_, h, err := actingHousehold(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	if h.EmergencyGroupID == nil {
		return nil, apperr.UnauthorizedAction("your household is not in an emergency group")
	}
	groupID := *h.EmergencyGroupID

	target, err := c.store.Households.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, apperr.Upstream(err, "load household")
	}
	if target == nil {
		return nil, apperr.NotFound("household not found")
	}
	if target.EmergencyGroupID != nil {
		return nil, apperr.Conflict("household already belongs to an emergency group")
	}

	inv, err := c.store.GroupInvitations.Create(ctx, groupID, target.ID)
	if isDuplicate(err) {
		return nil, apperr.Conflict("household already invited")
	}
	if err != nil {
		return nil, apperr.Upstream(err, "create group invitation")
	}

	c.logger.Info("emergency group invitation created", "group_id", groupID, "household_id", target.ID, "invited_by", actor.UserID)
	c.publishHousehold(target.ID, "emergency_group_invitation", "created", inv.ID, map[string]any{"group_id": groupID})
	return inv, nil
}

// ListGroupInvitations returns the invitations pending for the actor's
// household.
func (c *Coordinator) ListGroupInvitations(ctx context.Context, actor auth.Principal) ([]PendingGroupInvitation, error) {
	_, h, err := actingHousehold(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	invs, err := c.store.GroupInvitations.ListForHousehold(ctx, h.ID)
	if err != nil {
		return nil, apperr.Upstream(err, "list group invitations")
	}

	out := make([]PendingGroupInvitation, 0, len(invs))
	for _, inv := range invs {
		g, err := c.store.Groups.GetByID(ctx, inv.GroupID)
		if err != nil {
			return nil, apperr.Upstream(err, "load emergency group")
		}
		p := PendingGroupInvitation{EmergencyGroupInvitation: inv}
		if g != nil {
			p.GroupName = g.Name
		}
		out = append(out, p)
	}
	return out, nil
}

// AnswerInvitation accepts or declines the actor's household's invitation to
// groupID. Either answer removes the invitation.
func (c *Coordinator) AnswerInvitation(ctx context.Context, actor auth.Principal, groupID int64, accept bool) error {
	var householdID int64
	err := c.store.InTx(ctx, func(tx *store.Store) error {
		_, h, err := actingHousehold(ctx, tx, actor)
		if err != nil {
			return err
		}
		householdID = h.ID

		invited, err := tx.GroupInvitations.IsInvited(ctx, h.ID, groupID)
		if err != nil {
			return apperr.Upstream(err, "check group invitation")
		}
		if !invited {
			return apperr.UnauthorizedAction("household is not invited to this emergency group")
		}

		removed, err := tx.GroupInvitations.Delete(ctx, groupID, h.ID)
		if err != nil {
			return apperr.Upstream(err, "delete group invitation")
		}
		if !removed {
			return apperr.UnauthorizedAction("household is not invited to this emergency group")
		}
		if !accept {
			return nil
		}

		joined, err := tx.Households.JoinEmergencyGroup(ctx, h.ID, groupID)
		if err != nil {
			return apperr.Upstream(err, "join emergency group")
		}
		if !joined {
			return apperr.Conflict("household already belongs to an emergency group")
		}
		return nil
	})
	if err != nil {
		return err
	}

	action := "declined"
	if accept {
		action = "accepted"
	}
	c.logger.Info("emergency group invitation answered", "group_id", groupID, "household_id", householdID, "action", action)
	c.publishHousehold(householdID, "emergency_group_invitation", action, groupID, nil)
	return nil
}
