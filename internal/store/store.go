package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/preppr/internal/database"
)

// ErrDuplicate is returned when an insert or update hits a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the identity and membership stores so a workflow can run
// several of them in one transaction.
type Store struct {
	db *sql.DB

	Users            *UserStore
	Households       *HouseholdStore
	Groups           *EmergencyGroupStore
	JoinRequests     *JoinRequestStore
	Invitations      *HouseholdInvitationStore
	GroupInvitations *GroupInvitationStore
}

func New(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q querier) *Store {
	return &Store{
		Users:            &UserStore{q: q},
		Households:       &HouseholdStore{q: q},
		Groups:           &EmergencyGroupStore{q: q},
		JoinRequests:     &JoinRequestStore{q: q},
		Invitations:      &HouseholdInvitationStore{q: q},
		GroupInvitations: &GroupInvitationStore{q: q},
	}
}

// InTx runs fn with a Store bound to a single transaction. Inside fn only the
// passed Store may be used.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return errors.New("store: nested transaction")
	}
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(bind(tx))
	})
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
