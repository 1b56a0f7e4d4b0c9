package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"streamvault/backend/internal/db"
	"streamvault/backend/internal/user/domain"
)

// PostgresRepository implements Repository using Postgres via pgx.
type PostgresRepository struct {
	pool db.Querier
}

// NewPostgresRepository returns a user repository backed by the given pool.
func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, password_hash, role, active, suspended, email_verified, external_id, last_login_at, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// Emails are stored lower-cased; callers normalize before lookup.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByExternalID returns the user linked to the given identity-provider subject,
// or nil if no user carries that link.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, role, active, suspended, email_verified, external_id, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Active, u.Suspended, u.EmailVerified, u.ExternalID, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdatePasswordHash replaces the user's password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, time.Now().UTC(),
	)
	return err
}

// SetEmailVerified marks the user's email as verified.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
		userID, time.Now().UTC(),
	)
	return err
}

// UpdateLastLogin records the user's last successful login time.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`,
		userID, at,
	)
	return err
}

// Deactivate flips the active flag off. The row is never deleted.
func (r *PostgresRepository) Deactivate(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`,
		userID, time.Now().UTC(),
	)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u            domain.User
		passwordHash *string
		externalID   *string
	)
	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.Role, &u.Active, &u.Suspended,
		&u.EmailVerified, &externalID, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	if externalID != nil {
		u.ExternalID = *externalID
	}
	return &u, nil
}
