package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/preppr/internal/auth"
	"github.com/dukerupert/preppr/internal/model"
)

type UserStore struct {
	q querier
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var householdID sql.NullInt64
	var role string
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &householdID, &role, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.HouseholdID = int64Ptr(householdID)
	u.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, household_id, role, verified, created_at, updated_at`

// NewUser holds the fields set at creation.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	HouseholdID  *int64
	Role         auth.Role
	Verified     bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user. A taken email (or admin name) yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, nu NewUser) (*model.User, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, household_id, role, verified) VALUES (?, ?, ?, ?, ?, ?)`,
		normalizeEmail(nu.Email), nu.Name, nu.PasswordHash, nullInt64(nu.HouseholdID), nu.Role.String(), nu.Verified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// AdminNameExists reports whether an ADMIN or SUPERADMIN already uses name.
func (s *UserStore) AdminNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE name = ? AND role IN ('ADMIN', 'SUPERADMIN'))`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin name: %w", err)
	}
	return exists, nil
}

func (s *UserStore) ListByRole(ctx context.Context, role auth.Role) ([]model.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE role = ? ORDER BY id ASC`, role.String())
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetHousehold moves the user into householdID. It reports false if the user
// does not exist.
func (s *UserStore) SetHousehold(ctx context.Context, userID, householdID int64) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE users SET household_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		householdID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("set household: %w", err)
	}
	return affected(result)
}

// MarkVerified flips verified for an unverified user. It reports false when
// the user was already verified or does not exist.
func (s *UserStore) MarkVerified(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE users SET verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND verified = 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	return affected(result)
}

// UpdatePasswordHash swaps the hash only if it still equals oldHash, so two
// resets racing on the same token cannot both succeed.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND password_hash = ?`,
		newHash, id, oldHash,
	)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	return affected(result)
}

// DeleteWithRole hard-deletes a user only if it has the given role.
func (s *UserStore) DeleteWithRole(ctx context.Context, id int64, role auth.Role) (bool, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND role = ?`, id, role.String())
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
