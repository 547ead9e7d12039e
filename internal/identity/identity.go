// Package identity is the boundary to the platform's user store. This service
// never creates or deletes users; it reads roles and performs exactly one
// mutation, the promotion to institution decided by an approved request.
package identity

import (
	"context"

	id "vouch/pkg/domain"
)

// User is the slice of the platform user this subsystem cares about.
type User struct {
	ID   id.UserID
	Role id.Role
}

// Store exposes user lookup and role mutation.
type Store interface {
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	SetRole(ctx context.Context, userID id.UserID, role id.Role) error
}
