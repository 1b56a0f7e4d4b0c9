package repository

import (
	"context"
	"errors"
	"time"

	"streamvault/backend/internal/session/domain"
)

// ErrRotationConflict is returned by Rotate when the stored refresh material no longer
// matches the presented one: another rotation already consumed it. The caller must fail
// the request rather than overwrite.
var ErrRotationConflict = errors.New("refresh token already rotated")

// NewPair is the replacement token material applied by Rotate.
type NewPair struct {
	AccessTokenHash  string
	RefreshTokenHash string
	ExpiresAt        time.Time
}

// Repository provides session persistence. Get/Find methods return (nil, nil) when no
// row matches; errors are reserved for database failures.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// FindActiveByAccessTokenHash returns the live session whose current access token
	// has the given hash. Expiry is re-checked in the query.
	FindActiveByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// Rotate atomically replaces the session's token material, but only while the stored
	// refresh hash still equals oldRefreshHash and the session is live. Returns
	// ErrRotationConflict when the compare-and-swap matches no row.
	Rotate(ctx context.Context, sessionID, oldRefreshHash string, pair NewPair) (*domain.Session, error)
	// Revoke deactivates the session. Idempotent: revoking an already-revoked or missing
	// session is not an error.
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	// ListByUser returns the user's sessions ordered by last activity, most recent first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
}
