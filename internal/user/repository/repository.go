package repository

import (
	"context"
	"time"

	"streamvault/backend/internal/user/domain"
)

// Repository provides user persistence. Get methods return (nil, nil) when no row matches;
// errors are reserved for database failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	Deactivate(ctx context.Context, userID string) error
}
