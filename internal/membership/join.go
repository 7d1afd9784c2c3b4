package membership

import (
	"context"
	"errors"

	"github.com/dukerupert/preppr/internal/apperr"
	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/model"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/websocket"
)

// RequestToJoin files a pending join request from the actor to householdID.
func (c *Coordinator) RequestToJoin(ctx context.Context, actor auth.Principal, householdID int64) (*model.JoinHouseholdRequest, error) {
	h, err := c.store.Households.GetByID(ctx, householdID)
	if err != nil {
		return nil, apperr.Upstream(err, "load household")
	}
	if h == nil {
		return nil, apperr.NotFound("household not found")
	}

	u, err := actingUser(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	if u.InHousehold(householdID) {
		return nil, apperr.Conflict("already a member of this household")
	}

	req, err := c.store.JoinRequests.Create(ctx, householdID, u.ID)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("join request already pending")
	}
	if err != nil {
		return nil, apperr.Upstream(err, "create join request")
	}

	c.logger.Info("join request created", "request_id", req.ID, "household_id", householdID, "user_id", u.ID)
	c.publishHousehold(householdID, "join_request", "created", req.ID, map[string]any{"user_id": u.ID})
	return req, nil
}

// ListJoinRequests returns the pending requests for the actor's household.
func (c *Coordinator) ListJoinRequests(ctx context.Context, actor auth.Principal) ([]model.JoinHouseholdRequest, error) {
	_, h, err := actingHousehold(ctx, c.store, actor)
	if err != nil {
		return nil, err
	}
	reqs, err := c.store.JoinRequests.ListForHousehold(ctx, h.ID)
	if err != nil {
		return nil, apperr.Upstream(err, "list join requests")
	}
	if reqs == nil {
		reqs = []model.JoinHouseholdRequest{}
	}
	return reqs, nil
}

// AcceptJoinRequest consumes the request and moves the requester into the
// household. Only members of that household may accept.
func (c *Coordinator) AcceptJoinRequest(ctx context.Context, actor auth.Principal, requestID int64) (*model.JoinHouseholdRequest, error) {
	var req *model.JoinHouseholdRequest
	err := c.store.InTx(ctx, func(tx *store.Store) error {
		pending, err := tx.JoinRequests.GetByID(ctx, requestID)
		if err != nil {
			return apperr.Upstream(err, "load join request")
		}
		if pending == nil {
			return apperr.NotFound("join request not found")
		}

		u, err := actingUser(ctx, tx, actor)
		if err != nil {
			return err
		}
		if !u.InHousehold(pending.HouseholdID) {
			return apperr.UnauthorizedAction("only household members can accept join requests")
		}

		req, err = tx.JoinRequests.Consume(ctx, requestID)
		if err != nil {
			return apperr.Upstream(err, "consume join request")
		}
		if req == nil {
			return apperr.NotFound("join request not found")
		}

		ok, err := tx.Users.SetHousehold(ctx, req.UserID, req.HouseholdID)
		if err != nil {
			return apperr.Upstream(err, "join household")
		}
		if !ok {
			return apperr.NotFound("user not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("join request accepted", "request_id", req.ID, "household_id", req.HouseholdID, "user_id", req.UserID, "accepted_by", actor.UserID)
	c.publishHousehold(req.HouseholdID, "join_request", "accepted", req.ID, map[string]any{"user_id": req.UserID})
	c.notifier.PublishUser(req.UserID, websocket.NewMessage("join_request", "accepted", req.ID, map[string]any{"household_id": req.HouseholdID}))
	return req, nil
}

// DeclineJoinRequest removes a pending request. A household member may
// decline it and the requester may withdraw it. A request that no longer
// exists is not an error.
func (c *Coordinator) DeclineJoinRequest(ctx context.Context, actor auth.Principal, requestID int64) error {
	var declined *model.JoinHouseholdRequest
	err := c.store.InTx(ctx, func(tx *store.Store) error {
		pending, err := tx.JoinRequests.GetByID(ctx, requestID)
		if err != nil {
			return apperr.Upstream(err, "load join request")
		}
		if pending == nil {
			return nil
		}

		u, err := actingUser(ctx, tx, actor)
		if err != nil {
			return err
		}
		if u.ID != pending.UserID && !u.InHousehold(pending.HouseholdID) {
			return apperr.UnauthorizedAction("only household members or the requester can decline a join request")
		}

		declined, err = tx.JoinRequests.Consume(ctx, requestID)
		if err != nil {
			return apperr.Upstream(err, "consume join request")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if declined != nil {
		c.logger.Info("join request declined", "request_id", declined.ID, "household_id", declined.HouseholdID, "declined_by", actor.UserID)
		c.publishHousehold(declined.HouseholdID, "join_request", "declined", declined.ID, nil)
		c.notifier.PublishUser(declined.UserID, websocket.NewMessage("join_request", "declined", declined.ID, nil))
	}
	return nil
}
