package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/preppr/internal/model"
)

type HouseholdInvitationStore struct {
	q querier
}

func scanHouseholdInvitation(scanner interface{ Scan(...any) error }) (*model.HouseholdInvitation, error) {
	var inv model.HouseholdInvitation
	var invitedBy sql.NullInt64
	err := scanner.Scan(&inv.ID, &inv.HouseholdID, &invitedBy, &inv.InvitedEmail, &inv.InvitationToken, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.InvitedByUserID = int64Ptr(invitedBy)
	return &inv, nil
}

const householdInvitationCols = `id, household_id, invited_by_user_id, invited_email, invitation_token, created_at`

func (s *HouseholdInvitationStore) Create(ctx context.Context, householdID, invitedBy int64, email, token string) (*model.HouseholdInvitation, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO household_invitations (household_id, invited_by_user_id, invited_email, invitation_token) VALUES (?, ?, ?, ?)`,
		householdID, invitedBy, normalizeEmail(email), token,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert household invitation: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert household invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+householdInvitationCols+` FROM household_invitations WHERE id = ?`, id)
	return scanHouseholdInvitation(row)
}

func (s *HouseholdInvitationStore) GetByToken(ctx context.Context, token string) (*model.HouseholdInvitation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+householdInvitationCols+` FROM household_invitations WHERE invitation_token = ?`, token)
	inv, err := scanHouseholdInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household invitation: %w", err)
	}
	return inv, nil
}

// DeletePending removes earlier invitations of email to householdID.
func (s *HouseholdInvitationStore) DeletePending(ctx context.Context, householdID int64, email string) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM household_invitations WHERE household_id = ? AND invited_email = ?`,
		householdID, normalizeEmail(email),
	)
	if err != nil {
		return 0, fmt.Errorf("delete pending invitations: %w", err)
	}
	return result.RowsAffected()
}

// ConsumeByToken deletes the invitation and returns it, or nil if it was
// already consumed or purged.
func (s *HouseholdInvitationStore) ConsumeByToken(ctx context.Context, token string) (*model.HouseholdInvitation, error) {
	row := s.q.QueryRowContext(ctx,
		`DELETE FROM household_invitations WHERE invitation_token = ? RETURNING `+householdInvitationCols,
		token,
	)
	inv, err := scanHouseholdInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume household invitation: %w", err)
	}
	return inv, nil
}

// DeleteOlderThan purges invitations whose token can no longer validate.
func (s *HouseholdInvitationStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(age.Seconds()))
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM household_invitations WHERE created_at <= datetime('now', ?)`,
		modifier,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
