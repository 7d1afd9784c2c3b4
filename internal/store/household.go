package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/preppr/internal/model"
)

type HouseholdStore struct {
	q querier
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var groupID sql.NullInt64
	err := scanner.Scan(&h.ID, &h.Name, &h.Longitude, &h.Latitude, &groupID, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.EmergencyGroupID = int64Ptr(groupID)
	return &h, nil
}

const householdCols = `id, name, longitude, latitude, emergency_group_id, created_at`

// Create inserts a household. A taken name yields ErrDuplicate.
func (s *HouseholdStore) Create(ctx context.Context, name string, longitude, latitude float64) (*model.Household, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO households (name, longitude, latitude) VALUES (?, ?, ?)`,
		name, longitude, latitude,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert household: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// maxNameSuffix bounds CreateUnique's search for a free name.
const maxNameSuffix = 100

// CreateUnique inserts a household named base, or base followed by the first
// free numeric suffix ("Smith 2", "Smith 3", ...).
func (s *HouseholdStore) CreateUnique(ctx context.Context, base string, longitude, latitude float64) (*model.Household, error) {
	name := base
	for n := 2; n <= maxNameSuffix+1; n++ {
		h, err := s.Create(ctx, name, longitude, latitude)
		if !errors.Is(err, ErrDuplicate) {
			return h, err
		}
		name = fmt.Sprintf("%s %d", base, n)
	}
	return nil, fmt.Errorf("no free household name for %q: %w", base, ErrDuplicate)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.Household, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByName(ctx context.Context, name string) (*model.Household, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE name = ?`, name)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by name: %w", err)
	}
	return h, nil
}

// JoinEmergencyGroup sets the household's group if it has none. It reports
// false when the household is missing or already in a group.
func (s *HouseholdStore) JoinEmergencyGroup(ctx context.Context, householdID, groupID int64) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE households SET emergency_group_id = ? WHERE id = ? AND emergency_group_id IS NULL`,
		groupID, householdID,
	)
	if err != nil {
		return false, fmt.Errorf("join emergency group: %w", err)
	}
	return affected(result)
}

func (s *HouseholdStore) ListMembers(ctx context.Context, householdID int64) ([]model.User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *u)
	}
	return members, rows.Err()
}
