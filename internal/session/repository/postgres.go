package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"streamvault/backend/internal/db"
	"streamvault/backend/internal/session/domain"
)

// PostgresRepository implements Repository using Postgres via pgx.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, user_id, access_token_hash, refresh_token_hash, expires_at, remember_me, revoked_at, last_activity_at, created_at`

// Create persists the session. The session must have ID and token hashes set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, access_token_hash, refresh_token_hash, expires_at, remember_me, revoked_at, last_activity_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.AccessTokenHash, s.RefreshTokenHash, s.ExpiresAt, s.RememberMe, s.RevokedAt, s.LastActivityAt, s.CreatedAt,
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// FindActiveByAccessTokenHash returns the live session carrying the given access-token
// hash, or nil. Expiry and revocation are checked in the query, not trusted from flags.
func (r *PostgresRepository) FindActiveByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE access_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`,
		hash,
	)
	return scanSession(row)
}

// Rotate replaces the session's token material with a single compare-and-swap UPDATE.
// The row is touched only while its refresh hash still equals oldRefreshHash and the
// session is live; zero matched rows means the refresh material was already consumed
// (or the session expired/was revoked) and ErrRotationConflict is returned.
func (r *PostgresRepository) Rotate(ctx context.Context, sessionID, oldRefreshHash string, pair NewPair) (*domain.Session, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`UPDATE sessions
		 SET access_token_hash = $3, refresh_token_hash = $4, expires_at = $5, last_activity_at = $6
		 WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL AND expires_at > now()
		 RETURNING `+sessionColumns,
		sessionID, oldRefreshHash, pair.AccessTokenHash, pair.RefreshTokenHash, pair.ExpiresAt, now,
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrRotationConflict
	}
	return s, nil
}

// Revoke marks the session as revoked. Idempotent: already-revoked and missing
// sessions are left untouched without error.
func (r *PostgresRepository) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		sessionID, time.Now().UTC(),
	)
	return err
}

// RevokeAllByUser revokes every live session for the given user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC(),
	)
	return err
}

// ListByUser returns the user's sessions ordered by last activity, most recent first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1
		 ORDER BY last_activity_at DESC NULLS LAST, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.AccessTokenHash, &s.RefreshTokenHash,
			&s.ExpiresAt, &s.RememberMe, &s.RevokedAt, &s.LastActivityAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// TouchActivity sets the session's last-activity timestamp.
func (r *PostgresRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE id = $1`,
		sessionID, at,
	)
	return err
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.AccessTokenHash, &s.RefreshTokenHash,
		&s.ExpiresAt, &s.RememberMe, &s.RevokedAt, &s.LastActivityAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
