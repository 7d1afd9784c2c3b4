package membership

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/websocket"
)

// HouseholdView is a household with its members.
type HouseholdView struct {
	model.Household
	Members []model.User `json:"members"`
}

// CreateHousehold creates a household and moves the actor into it.
func (c *Coordinator) CreateHousehold(ctx context.Context, actor auth.Principal, name string, longitude, latitude float64) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("household name is required")
	}

	var h *model.Household
	err := c.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := actingUser(ctx, tx, actor); err != nil {
			return err
		}
		var err error
		h, err = tx.Households.Create(ctx, name, longitude, latitude)
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("household name already taken")
		}
		if err != nil {
			return apperr.Upstream(err, "create household")
		}
		if _, err := tx.Users.SetHousehold(ctx, actor.UserID, h.ID); err != nil {
			return apperr.Upstream(err, "join household")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("household created", "household_id", h.ID, "user_id", actor.UserID)
	return h, nil
}

// MyHousehold returns the actor's household and its members.
func (c *Coordinator) MyHousehold(ctx context.Context, actor auth.Principal) (*HouseholdView, error) {
	_, h, err := actingHousehold(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	members, err := c.store.Households.ListMembers(ctx, h.ID)
	if err != nil {
		return nil, apperr.Upstream(err, "list members")
	}
	if members == nil {
		members = []model.User{}
	}
	return &HouseholdView{Household: *h, Members: members}, nil
}

// HouseholdOf reports the household userID belongs to.
func (c *Coordinator) HouseholdOf(ctx context.Context, userID int64) (int64, bool, error) {
	u, err := c.store.Users.GetByID(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if u == nil || u.HouseholdID == nil {
		return 0, false, nil
	}
	return *u.HouseholdID, true, nil
}

func (c *Coordinator) publishHousehold(householdID int64, entity, action string, id int64, extra map[string]any) {
	c.notifier.PublishHousehold(householdID, websocket.NewMessage(entity, action, id, extra))
}
