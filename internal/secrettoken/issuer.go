// Package secrettoken issues and redeems single-use high-entropy tokens for the
// password-reset and email-verification flows.
package secrettoken

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"streamvault/backend/internal/secrettoken/domain"
	"streamvault/backend/internal/secrettoken/repository"
	"streamvault/backend/internal/security"
)

// ErrExpiredOrInvalid is returned by Redeem for every negative outcome: unknown token,
// wrong purpose, already used, or expired. Callers must not distinguish these cases.
var ErrExpiredOrInvalid = errors.New("secret token expired or invalid")

const secretBytes = 32

// Issuer creates and consumes secret tokens. Only hashes are persisted; the raw
// value is handed to the caller exactly once.
type Issuer struct {
	repo repository.Repository
	ttl  time.Duration
	nowF func() time.Time
}

// NewIssuer returns an Issuer persisting to repo with the given token lifetime.
func NewIssuer(repo repository.Repository, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{repo: repo, ttl: ttl, nowF: time.Now}
}

// Issue generates a fresh token for the user and purpose and returns the raw value.
// Any prior unused token of the same purpose is invalidated first, so at most one
// issued token per (user, purpose) is ever redeemable.
func (i *Issuer) Issue(ctx context.Context, userID string, purpose domain.Purpose) (string, error) {
	if !purpose.Valid() {
		return "", ErrExpiredOrInvalid
	}
	now := i.nowF().UTC()
	if err := i.repo.InvalidateUnused(ctx, userID, purpose, now); err != nil {
		return "", err
	}
	raw, err := security.GenerateSecret(secretBytes)
	if err != nil {
		return "", err
	}
	t := &domain.SecretToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// Redeem consumes the token matching raw and purpose exactly once and returns the
// owning user id. Returns ErrExpiredOrInvalid for unknown, used, or expired tokens.
func (i *Issuer) Redeem(ctx context.Context, raw string, purpose domain.Purpose) (string, error) {
	if raw == "" || !purpose.Valid() {
		return "", ErrExpiredOrInvalid
	}
	t, err := i.repo.FindUnusedByHash(ctx, security.HashToken(raw), purpose)
	if err != nil {
		return "", err
	}
	now := i.nowF().UTC()
	if t == nil || !t.Redeemable(now) {
		return "", ErrExpiredOrInvalid
	}
	if err := i.repo.MarkUsed(ctx, t.ID, now); err != nil {
		return "", err
	}
	return t.UserID, nil
}
