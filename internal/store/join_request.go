package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/preppr/internal/model"
)

type JoinRequestStore struct {
	q querier
}

func scanJoinRequest(scanner interface{ Scan(...any) error }) (*model.JoinHouseholdRequest, error) {
	var r model.JoinHouseholdRequest
	if err := scanner.Scan(&r.ID, &r.HouseholdID, &r.UserID, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const joinRequestCols = `id, household_id, user_id, created_at`

// Create files a pending request. An identical pending request yields
// ErrDuplicate.
func (s *JoinRequestStore) Create(ctx context.Context, householdID, userID int64) (*model.JoinHouseholdRequest, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO join_household_requests (household_id, user_id) VALUES (?, ?)`,
		householdID, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert join request: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert join request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *JoinRequestStore) GetByID(ctx context.Context, id int64) (*model.JoinHouseholdRequest, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+joinRequestCols+` FROM join_household_requests WHERE id = ?`, id)
	r, err := scanJoinRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get join request: %w", err)
	}
	return r, nil
}

func (s *JoinRequestStore) ListForHousehold(ctx context.Context, householdID int64) ([]model.JoinHouseholdRequest, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+joinRequestCols+` FROM join_household_requests WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.JoinHouseholdRequest
	for rows.Next() {
		r, err := scanJoinRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan join request: %w", err)
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

// Consume deletes the request and returns the deleted row, or nil if another
// caller already removed it.
func (s *JoinRequestStore) Consume(ctx context.Context, id int64) (*model.JoinHouseholdRequest, error) {
	row := s.q.QueryRowContext(ctx,
		`DELETE FROM join_household_requests WHERE id = ? RETURNING `+joinRequestCols,
		id,
	)
	r, err := scanJoinRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume join request: %w", err)
	}
	return r, nil
}
