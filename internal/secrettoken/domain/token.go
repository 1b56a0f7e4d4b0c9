package domain

import "time"

// Purpose distinguishes the single-use token flows.
type Purpose string

const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailVerification
}

// SecretToken is the persisted record of a single-use high-entropy token.
// Only the hash is stored; the raw value is returned once at issuance
// and never retrievable again. At most one unused instance exists per
// (user, purpose): issuing a new one marks prior unused instances used.
type SecretToken struct {
	ID        string
	UserID    string
	Purpose   Purpose
	TokenHash string
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Redeemable reports whether the token can still be consumed at the given time.
func (t *SecretToken) Redeemable(now time.Time) bool {
	return t != nil && !t.IsUsed && t.ExpiresAt.After(now)
}
