package domain

import (
	"errors"
	"time"
)

// User is the core user entity. Users are never hard-deleted by this subsystem;
// deactivation is a flag flip.
type User struct {
	ID            string
	Email         string
	PasswordHash  string // empty when the identity is provider-only
	Role          string
	Active        bool
	Suspended     bool
	EmailVerified bool
	ExternalID    string // link to the external identity-provider subject; empty if unlinked
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RoleUser is the default role assigned at registration.
const RoleUser = "user"

// rolePermissions maps a role to the permission claims embedded in access tokens.
var rolePermissions = map[string][]string{
	RoleUser: {"watchlist:read", "watchlist:write", "search:read"},
	"admin":  {"watchlist:read", "watchlist:write", "search:read", "users:manage"},
}

// Permissions returns the permission set for the user's role. Unknown roles have none.
func (u *User) Permissions() []string {
	return rolePermissions[u.Role]
}

// CanAuthenticate reports whether the user may resolve an identity: active and not suspended.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Active && !u.Suspended
}

// Validate validates the user for persistence. Returns an error describing the first
// validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
