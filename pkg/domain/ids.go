// Package domain defines typed identifiers shared across the service. Typed
// IDs prevent cross-entity assignment at compile time: a RequestID can never
// be passed where a PostID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "vouch/pkg/domain-errors"
)

// UserID identifies a user in the identity store.
type UserID uuid.UUID

// RequestID identifies an institution promotion request.
type RequestID uuid.UUID

// PostID identifies a post owned by the content platform.
type PostID uuid.UUID

// VerificationID identifies a post verification record.
type VerificationID uuid.UUID

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id RequestID) String() string      { return uuid.UUID(id).String() }
func (id PostID) String() string         { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PostID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID generates a fresh user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRequestID generates a fresh request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewPostID generates a fresh post identifier.
func NewPostID() PostID { return PostID(uuid.New()) }

// NewVerificationID generates a fresh verification identifier.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// The typed IDs are [16]byte underneath and would otherwise marshal as byte
// arrays; text marshaling keeps them canonical UUID strings in JSON and SQL.

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id RequestID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id PostID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id VerificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RequestID) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PostID) UnmarshalText(text []byte) error {
	parsed, err := ParsePostID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VerificationID) UnmarshalText(text []byte) error {
	parsed, err := ParseVerificationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", kind)
	}
	return parsed, nil
}

// ParseUserID parses a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user ID")
	return UserID(parsed), err
}

// ParseRequestID parses a request ID from its string form.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw, "request ID")
	return RequestID(parsed), err
}

// ParsePostID parses a post ID from its string form.
func ParsePostID(raw string) (PostID, error) {
	parsed, err := parseUUID(raw, "post ID")
	return PostID(parsed), err
}

// ParseVerificationID parses a verification ID from its string form.
func ParseVerificationID(raw string) (VerificationID, error) {
	parsed, err := parseUUID(raw, "verification ID")
	return VerificationID(parsed), err
}
