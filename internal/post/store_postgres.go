package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// PostgresStore reads the post projection from the shared platform database.
// The post and users tables are owned by the content and identity services;
// this store only ever selects from them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetAuthorAndStatus(ctx context.Context, postID id.PostID) (*Info, error) {
	query := `
		SELECT p.id, p.author_id, u.role, p.status = 'ACTIVE'
		FROM post p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`

	var rawID, rawAuthorID uuid.UUID
	var rawRole string
	var active bool
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(postID)).Scan(&rawID, &rawAuthorID, &rawRole, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get post author and status: %w", err)
	}

	role, err := id.ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("get post author and status: %w", err)
	}
	return &Info{
		ID:         id.PostID(rawID),
		AuthorID:   id.UserID(rawAuthorID),
		AuthorRole: role,
		Active:     active,
	}, nil
}
