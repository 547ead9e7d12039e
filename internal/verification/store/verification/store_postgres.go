package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
)

// ActiveVerificationConstraint is the partial unique index enforcing "at most
// one active verification per post". A violation means a concurrent Verify
// won the race; it surfaces as sentinel.ErrConflict.
const ActiveVerificationConstraint = "post_verification_one_active_per_post"

// PostgresStore persists post verifications. Pure I/O.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, record *models.PostVerification) error {
	query := `
		INSERT INTO post_verification (id, post_id, verified_by, verified_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.PostID),
		uuid.UUID(record.VerifiedBy),
		record.VerifiedAt,
		record.Active,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == ActiveVerificationConstraint {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create post verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveByPost(ctx context.Context, postID id.PostID) (*models.PostVerification, error) {
	query := `
		SELECT id, post_id, verified_by, verified_at, is_active
		FROM post_verification
		WHERE post_id = $1 AND is_active
	`
	record, err := scanVerification(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(postID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active verification: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ExistsActiveByPost(ctx context.Context, postID id.PostID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM post_verification WHERE post_id = $1 AND is_active)`
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(postID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active verification: %w", err)
	}
	return exists, nil
}

// Deactivate retracts the active verification for postID created by
// verifierID. A single conditional UPDATE makes the check-then-flip atomic;
// zero affected rows means there was no matching active record, whether the
// post was never verified or was verified by someone else.
func (s *PostgresStore) Deactivate(ctx context.Context, postID id.PostID, verifierID id.UserID, _ time.Time) (*models.PostVerification, error) {
	query := `
		UPDATE post_verification
		SET is_active = FALSE
		WHERE post_id = $1 AND verified_by = $2 AND is_active
		RETURNING id, post_id, verified_by, verified_at, is_active
	`
	record, err := scanVerification(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(postID), uuid.UUID(verifierID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("deactivate verification: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByPost(ctx context.Context, postID id.PostID) ([]*models.PostVerification, error) {
	query := `
		SELECT id, post_id, verified_by, verified_at, is_active
		FROM post_verification
		WHERE post_id = $1
		ORDER BY verified_at DESC
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(postID))
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*models.PostVerification
	for rows.Next() {
		record, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerification(row rowScanner) (*models.PostVerification, error) {
	var record models.PostVerification
	var rawID, rawPostID, rawVerifier uuid.UUID
	err := row.Scan(&rawID, &rawPostID, &rawVerifier, &record.VerifiedAt, &record.Active)
	if err != nil {
		return nil, err
	}
	record.ID = id.VerificationID(rawID)
	record.PostID = id.PostID(rawPostID)
	record.VerifiedBy = id.UserID(rawVerifier)
	return &record, nil
}
