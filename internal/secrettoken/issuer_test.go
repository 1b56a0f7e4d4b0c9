package secrettoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamvault/backend/internal/secrettoken/domain"
	"streamvault/backend/internal/security"
)

type memTokenRepo struct {
	mu sync.Mutex
	m  map[string]*domain.SecretToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{m: make(map[string]*domain.SecretToken)}
}

func (r *memTokenRepo) Create(ctx context.Context, t *domain.SecretToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t2 := *t
	r.m[t.ID] = &t2
	return nil
}

func (r *memTokenRepo) FindUnusedByHash(ctx context.Context, tokenHash string, purpose domain.Purpose) (*domain.SecretToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.m {
		if t.TokenHash == tokenHash && t.Purpose == purpose && !t.IsUsed {
			t2 := *t
			return &t2, nil
		}
	}
	return nil, nil
}

func (r *memTokenRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.m[id]; ok {
		t.IsUsed = true
		t.UsedAt = &at
	}
	return nil
}

func (r *memTokenRepo) InvalidateUnused(ctx context.Context, userID string, purpose domain.Purpose, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.m {
		if t.UserID == userID && t.Purpose == purpose && !t.IsUsed {
			t.IsUsed = true
			t.UsedAt = &at
		}
	}
	return nil
}

func (r *memTokenRepo) unusedCount(userID string, purpose domain.Purpose) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.m {
		if t.UserID == userID && t.Purpose == purpose && !t.IsUsed {
			n++
		}
	}
	return n
}

func TestIssuerIssueAndRedeem(t *testing.T) {
	repo := newMemTokenRepo()
	issuer := NewIssuer(repo, time.Hour)
	ctx := context.Background()

	raw, err := issuer.Issue(ctx, "user-1", domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if raw == "" {
		t.Fatal("expected a raw token")
	}
	// Only the hash is persisted.
	for _, stored := range repo.m {
		if stored.TokenHash == raw {
			t.Error("raw token must not be stored")
		}
		if stored.TokenHash != security.HashToken(raw) {
			t.Error("stored hash does not match the issued token")
		}
	}

	userID, err := issuer.Redeem(ctx, raw, domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Redeem returned %q, want user-1", userID)
	}

	// Single use: a second redemption fails.
	if _, err := issuer.Redeem(ctx, raw, domain.PurposePasswordReset); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("second redeem: want ErrExpiredOrInvalid, got %v", err)
	}
}

func TestIssuerInvalidatesPriorUnused(t *testing.T) {
	repo := newMemTokenRepo()
	issuer := NewIssuer(repo, time.Hour)
	ctx := context.Background()

	first, err := issuer.Issue(ctx, "user-1", domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := issuer.Issue(ctx, "user-1", domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if n := repo.unusedCount("user-1", domain.PurposePasswordReset); n != 1 {
		t.Fatalf("want exactly 1 unused token, got %d", n)
	}
	if _, err := issuer.Redeem(ctx, first, domain.PurposePasswordReset); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("stale token: want ErrExpiredOrInvalid, got %v", err)
	}
	if _, err := issuer.Redeem(ctx, second, domain.PurposePasswordReset); err != nil {
		t.Errorf("latest token should redeem: %v", err)
	}
}

func TestIssuerPurposesAreIsolated(t *testing.T) {
	repo := newMemTokenRepo()
	issuer := NewIssuer(repo, time.Hour)
	ctx := context.Background()

	reset, err := issuer.Issue(ctx, "user-1", domain.PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Issue(ctx, "user-1", domain.PurposeEmailVerification); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Issuing for one purpose must not invalidate the other.
	if _, err := issuer.Redeem(ctx, reset, domain.PurposePasswordReset); err != nil {
		t.Errorf("reset token should survive a verification issue: %v", err)
	}
	// A token cannot be redeemed under the wrong purpose.
	raw, err := issuer.Issue(ctx, "user-2", domain.PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Redeem(ctx, raw, domain.PurposePasswordReset); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("wrong purpose: want ErrExpiredOrInvalid, got %v", err)
	}
}

func TestIssuerRedeemExpired(t *testing.T) {
	repo := newMemTokenRepo()
	issuer := NewIssuer(repo, time.Hour)
	ctx := context.Background()

	raw, err := issuer.Issue(ctx, "user-1", domain.PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.nowF = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := issuer.Redeem(ctx, raw, domain.PurposeEmailVerification); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("expired token: want ErrExpiredOrInvalid, got %v", err)
	}
}

func TestIssuerRejectsBadInput(t *testing.T) {
	issuer := NewIssuer(newMemTokenRepo(), time.Hour)
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "user-1", domain.Purpose("bogus")); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("bad purpose: want ErrExpiredOrInvalid, got %v", err)
	}
	if _, err := issuer.Redeem(ctx, "", domain.PurposePasswordReset); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("empty token: want ErrExpiredOrInvalid, got %v", err)
	}
	if _, err := issuer.Redeem(ctx, "unknown", domain.PurposePasswordReset); !errors.Is(err, ErrExpiredOrInvalid) {
		t.Errorf("unknown token: want ErrExpiredOrInvalid, got %v", err)
	}
}
