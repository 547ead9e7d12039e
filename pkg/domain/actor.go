package domain

import (
	dErrors "vouch/pkg/domain-errors"
)

// Role is a user's platform role. Roles are mutually exclusive; promotion from
// normal to institution is the only transition this service performs.
type Role string

const (
	RoleNormal      Role = "NORMAL"
	RoleInstitution Role = "INSTITUTION"
	RoleAdmin       Role = "ADMIN"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleNormal, RoleInstitution, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a role from its string form.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", raw)
	}
	return role, nil
}

// Actor is the authenticated caller of a workflow operation. It is always
// passed explicitly into services, never read from ambient state, so service
// logic stays testable without a fake request pipeline.
type Actor struct {
	ID   UserID
	Role Role
}

// Require is the single capability check performed at each operation entry
// point. It returns a forbidden error unless the actor holds one of the given
// roles.
func (a Actor) Require(roles ...Role) error {
	if a.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	for _, role := range roles {
		if a.Role == role {
			return nil
		}
	}
	switch {
	case len(roles) == 1 && roles[0] == RoleAdmin:
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	case len(roles) == 1 && roles[0] == RoleInstitution:
		return dErrors.New(dErrors.CodeForbidden, "institution role required")
	case len(roles) == 1 && roles[0] == RoleNormal:
		return dErrors.New(dErrors.CodeForbidden, "only normal users may perform this operation")
	}
	return dErrors.New(dErrors.CodeForbidden, "insufficient role")
}
