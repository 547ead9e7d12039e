package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
)

// PostgresStore reads and mutates users in the shared platform database.
// Pure I/O; role transition rules belong to the review service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	query := `SELECT id, role FROM users WHERE id = $1`

	var rawID uuid.UUID
	var rawRole string
	err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&rawID, &rawRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	role, err := id.ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &User{ID: id.UserID(rawID), Role: role}, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, userID id.UserID, role id.Role) error {
	query := `UPDATE users SET role = $2 WHERE id = $1`

	result, err := s.conn(ctx).ExecContext(ctx, query, uuid.UUID(userID), string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
