package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vouch/internal/request/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
)

// ActiveRequestConstraint is the partial unique index enforcing "at most one
// active request per user". A violation means a concurrent Submit won the
// race; it surfaces as sentinel.ErrConflict, never as a raw driver error.
const ActiveRequestConstraint = "institution_request_one_active_per_requester"

// PostgresStore persists institution requests. Pure I/O; transition rules
// live in models and services.
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

const requestColumns = `
	id, requester_id, institution_name, legal_address, official_phone, type,
	document_url, registry_number, website, status, rejection_reason,
	created_at, reviewed_at, reviewed_by
`

func (s *PostgresStore) Create(ctx context.Context, req *models.InstitutionRequest) error {
	query := `
		INSERT INTO institution_request (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.RequesterID),
		req.InstitutionName,
		req.LegalAddress,
		req.OfficialPhone,
		string(req.Type),
		req.DocumentURL,
		nullString(req.RegistryNumber),
		nullString(req.Website),
		string(req.Status),
		nullString(req.RejectionReason),
		req.CreatedAt,
		nullTime(req.ReviewedAt),
		nullUserID(req.ReviewedBy),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == ActiveRequestConstraint {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create institution request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.InstitutionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM institution_request WHERE id = $1`
	req, err := scanRequest(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find institution request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID id.UserID) ([]*models.InstitutionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM institution_request
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(requesterID))
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) List(ctx context.Context, status *models.Status) ([]*models.InstitutionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM institution_request ORDER BY created_at DESC`
	args := []any{}
	if status != nil {
		query = `
			SELECT ` + requestColumns + `
			FROM institution_request
			WHERE status = $1
			ORDER BY created_at DESC
		`
		args = append(args, string(*status))
	}
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	query := `SELECT COUNT(*) FROM institution_request WHERE status = $1`
	var count int
	if err := s.conn(ctx).QueryRowContext(ctx, query, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count requests by status: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) HasActive(ctx context.Context, requesterID id.UserID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM institution_request
			WHERE requester_id = $1 AND status IN ('PENDING', 'APPROVED')
		)
	`
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(requesterID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active request: %w", err)
	}
	return exists, nil
}

// Execute atomically validates and mutates one request. The row is locked
// with SELECT ... FOR UPDATE for the duration of validate+mutate. When no
// transaction is in the context a local one is opened so the lock has a
// boundary to release at.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID,
	validate func(*models.InstitutionRequest) error,
	mutate func(*models.InstitutionRequest),
) (*models.InstitutionRequest, error) {
	if _, ok := tx.From(ctx); ok {
		return s.executeLocked(ctx, s.conn(ctx), requestID, validate, mutate)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	req, err := s.executeLocked(ctx, sqlTx, requestID, validate, mutate)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, q querier, requestID id.RequestID,
	validate func(*models.InstitutionRequest) error,
	mutate func(*models.InstitutionRequest),
) (*models.InstitutionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM institution_request WHERE id = $1 FOR UPDATE`
	req, err := scanRequest(q.QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock institution request: %w", err)
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)

	update := `
		UPDATE institution_request
		SET status = $2, rejection_reason = $3, reviewed_at = $4, reviewed_by = $5
		WHERE id = $1
	`
	_, err = q.ExecContext(ctx, update,
		uuid.UUID(req.ID),
		string(req.Status),
		nullString(req.RejectionReason),
		nullTime(req.ReviewedAt),
		nullUserID(req.ReviewedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("update institution request: %w", err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.InstitutionRequest, error) {
	var req models.InstitutionRequest
	var rawID, rawRequester uuid.UUID
	var rawType, rawStatus string
	var registry, website, reason sql.NullString
	var reviewedAt sql.NullTime
	var reviewedBy uuid.NullUUID

	err := row.Scan(
		&rawID, &rawRequester, &req.InstitutionName, &req.LegalAddress,
		&req.OfficialPhone, &rawType, &req.DocumentURL, &registry, &website,
		&rawStatus, &reason, &req.CreatedAt, &reviewedAt, &reviewedBy,
	)
	if err != nil {
		return nil, err
	}

	req.ID = id.RequestID(rawID)
	req.RequesterID = id.UserID(rawRequester)
	req.Type = models.InstitutionType(rawType)
	req.Status = models.Status(rawStatus)
	req.RegistryNumber = registry.String
	req.Website = website.String
	req.RejectionReason = reason.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		req.ReviewedAt = &t
	}
	if reviewedBy.Valid {
		adminID := id.UserID(reviewedBy.UUID)
		req.ReviewedBy = &adminID
	}
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]*models.InstitutionRequest, error) {
	var out []*models.InstitutionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate institution requests: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
}
