package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"streamvault/backend/internal/db"
	"streamvault/backend/internal/secrettoken/domain"
)

// PostgresRepository implements Repository using Postgres via pgx.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository returns a secret-token repository backed by the given pool.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the token record. Only the hash is stored, never the raw value.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.SecretToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO secret_tokens (id, user_id, purpose, token_hash, expires_at, is_used, used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, string(t.Purpose), t.TokenHash, t.ExpiresAt, t.IsUsed, t.UsedAt, t.CreatedAt,
	)
	return err
}

// FindUnusedByHash returns the unused, unexpired token matching the hash and purpose,
// or nil. Expiry is checked in the query.
func (r *PostgresRepository) FindUnusedByHash(ctx context.Context, tokenHash string, purpose domain.Purpose) (*domain.SecretToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, purpose, token_hash, expires_at, is_used, used_at, created_at
		 FROM secret_tokens
		 WHERE token_hash = $1 AND purpose = $2 AND NOT is_used AND expires_at > now()`,
		tokenHash, string(purpose),
	)
	var t domain.SecretToken
	err := row.Scan(&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.IsUsed, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkUsed consumes the token, recording when it was redeemed.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE secret_tokens SET is_used = TRUE, used_at = $2 WHERE id = $1`,
		id, at,
	)
	return err
}

// InvalidateUnused marks all unused tokens of this purpose for the user as used.
func (r *PostgresRepository) InvalidateUnused(ctx context.Context, userID string, purpose domain.Purpose, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE secret_tokens SET is_used = TRUE, used_at = $3
		 WHERE user_id = $1 AND purpose = $2 AND NOT is_used`,
		userID, string(purpose), at,
	)
	return err
}
