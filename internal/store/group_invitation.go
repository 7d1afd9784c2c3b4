package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/preppr/internal/model"
)

type GroupInvitationStore struct {
	q querier
}

func scanGroupInvitation(scanner interface{ Scan(...any) error }) (*model.EmergencyGroupInvitation, error) {
	var inv model.EmergencyGroupInvitation
	if err := scanner.Scan(&inv.ID, &inv.GroupID, &inv.HouseholdID, &inv.CreatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

const groupInvitationCols = `id, group_id, household_id, created_at`

// Create invites householdID to groupID. A repeated invitation yields
// ErrDuplicate.
func (s *GroupInvitationStore) Create(ctx context.Context, groupID, householdID int64) (*model.EmergencyGroupInvitation, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO emergency_group_invitations (group_id, household_id) VALUES (?, ?)`,
		groupID, householdID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert group invitation: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert group invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+groupInvitationCols+` FROM emergency_group_invitations WHERE id = ?`, id)
	return scanGroupInvitation(row)
}

func (s *GroupInvitationStore) IsInvited(ctx context.Context, householdID, groupID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM emergency_group_invitations WHERE household_id = ? AND group_id = ?)`,
		householdID, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group invitation: %w", err)
	}
	return exists, nil
}

func (s *GroupInvitationStore) ListForHousehold(ctx context.Context, householdID int64) ([]model.EmergencyGroupInvitation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+groupInvitationCols+` FROM emergency_group_invitations WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group invitations: %w", err)
	}
	defer rows.Close()

	var invs []model.EmergencyGroupInvitation
	for rows.Next() {
		inv, err := scanGroupInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group invitation: %w", err)
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

// Delete removes the invitation. It reports false if there was none.
func (s *GroupInvitationStore) Delete(ctx context.Context, groupID, householdID int64) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM emergency_group_invitations WHERE group_id = ? AND household_id = ?`,
		groupID, householdID,
	)
	if err != nil {
		return false, fmt.Errorf("delete group invitation: %w", err)
	}
	return affected(result)
}
