package repository

import (
	"context"
	"time"

	"streamvault/backend/internal/secrettoken/domain"
)

// Repository provides secret-token persistence. FindUnusedByHash returns (nil, nil)
// when no row matches; errors are reserved for database failures.
type Repository interface {
	Create(ctx context.Context, t *domain.SecretToken) error
	FindUnusedByHash(ctx context.Context, tokenHash string, purpose domain.Purpose) (*domain.SecretToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	// InvalidateUnused marks every unused token of the given purpose for the user as
	// used, so at most one issued token is ever redeemable.
	InvalidateUnused(ctx context.Context, userID string, purpose domain.Purpose, at time.Time) error
}
