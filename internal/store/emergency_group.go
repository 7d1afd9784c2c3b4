package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/preppr/internal/model"
)

type EmergencyGroupStore struct {
	q querier
}

func scanEmergencyGroup(scanner interface{ Scan(...any) error }) (*model.EmergencyGroup, error) {
	var g model.EmergencyGroup
	if err := scanner.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

const emergencyGroupCols = `id, name, created_at`

func (s *EmergencyGroupStore) Create(ctx context.Context, name string) (*model.EmergencyGroup, error) {
	result, err := s.q.ExecContext(ctx, `INSERT INTO emergency_groups (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert emergency group: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert emergency group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EmergencyGroupStore) GetByID(ctx context.Context, id int64) (*model.EmergencyGroup, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+emergencyGroupCols+` FROM emergency_groups WHERE id = ?`, id)
	g, err := scanEmergencyGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get emergency group: %w", err)
	}
	return g, nil
}
