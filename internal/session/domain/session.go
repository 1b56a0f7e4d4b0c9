package domain

import "time"

// Session binds a session id to a user and the hashes of its current token pair.
// A session is a single continuous identity across rotations: rotation updates the
// row in place with new token material, it never creates a new row.
type Session struct {
	ID               string
	UserID           string
	AccessTokenHash  string // SHA-256 hash of the current access token
	RefreshTokenHash string // SHA-256 hash of the current refresh token
	ExpiresAt        time.Time
	RememberMe       bool
	RevokedAt        *time.Time // nil when not revoked
	LastActivityAt   *time.Time
	CreatedAt        time.Time
}

// Live reports whether the session can still authenticate at the given time:
// not revoked and not past its expiry. Read paths re-check this even when the
// stored row looks active (lazy expiry; no background sweep required).
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}
