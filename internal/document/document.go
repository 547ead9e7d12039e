// Package document is the boundary to external document storage. Uploads are
// all-or-nothing: on failure no partial state is retained and the caller
// decides whether to retry.
package document

import (
	"context"

	id "vouch/pkg/domain"
)

// Upload is the raw document handed to Submit before validation.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Store persists validated documents and returns their public URL.
type Store interface {
	Upload(ctx context.Context, doc Upload, ownerID id.UserID) (string, error)
}
