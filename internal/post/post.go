// Package post is the read-only boundary to the content platform. The
// verification engine needs exactly two facts about a post: who authored it
// (and with what role) and whether it is still active.
package post

import (
	"context"

	id "vouch/pkg/domain"
)

// Info is the author-and-status projection of a post.
type Info struct {
	ID         id.PostID
	AuthorID   id.UserID
	AuthorRole id.Role
	Active     bool
}

// Store looks up the author-and-status projection.
type Store interface {
	GetAuthorAndStatus(ctx context.Context, postID id.PostID) (*Info, error)
}
