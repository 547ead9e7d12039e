package models

import (
	"time"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// PostVerification records one institution vouching for one post.
//
// Invariants:
//   - At most one row per post has Active=true; enforced by the store, not by
//     a read-then-write.
//   - Rows are never physically deleted; Unverify flips Active to false so
//     the audit history survives.
//
// Per verifier lineage the record moves unverified → verified → unverified;
// the post's externally visible verified status is the OR of author role and
// any active record, so retracting one record does not necessarily change
// what readers see.
type PostVerification struct {
	ID         id.VerificationID `json:"id"`
	PostID     id.PostID         `json:"post_id"`
	VerifiedBy id.UserID         `json:"verified_by"`
	VerifiedAt time.Time         `json:"verified_at"`
	Active     bool              `json:"active"`
}

// NewPostVerification builds an active verification record.
func NewPostVerification(verificationID id.VerificationID, postID id.PostID, verifierID id.UserID, now time.Time) (*PostVerification, error) {
	if postID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "post is required")
	}
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier is required")
	}
	return &PostVerification{
		ID:         verificationID,
		PostID:     postID,
		VerifiedBy: verifierID,
		VerifiedAt: now,
		Active:     true,
	}, nil
}
