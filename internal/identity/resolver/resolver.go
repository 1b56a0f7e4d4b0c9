// Package resolver resolves a per-request identity from a raw bearer or cookie value.
package resolver

import (
	"context"
	"errors"
	"time"

	"streamvault/backend/internal/identity/provider"
	"streamvault/backend/internal/revocation"
	"streamvault/backend/internal/security"
	sessionrepo "streamvault/backend/internal/session/repository"
	userrepo "streamvault/backend/internal/user/repository"
)

// Provenance names which credential source resolved the identity.
type Provenance string

const (
	ProvenanceInternal Provenance = "internal"
	ProvenanceExternal Provenance = "external"
)

// Identity is a resolved request identity.
type Identity struct {
	UserID     string
	Email      string
	Role       string
	SessionID  string // empty for externally resolved identities
	Provenance Provenance
}

// verifier is one resolution strategy. ok=false means "not applicable", which is the
// expected negative and never an error; err is reserved for store/transport failures.
type verifier interface {
	resolve(ctx context.Context, token string) (ident *Identity, ok bool, err error)
}

// Resolver tries an ordered list of verifier strategies and stops at the first positive
// result. An unresolved identity is not an error: callers needing authentication reject
// a nil Identity uniformly, regardless of which strategy failed and why.
type Resolver struct {
	strategies []verifier
}

// New returns a Resolver that tries internal verification first (local, cheap, the
// common case) and falls back to the external identity provider, so a client holding
// a still-valid provider credential is not forced to re-authenticate when its internal
// session is gone. providerVerifier may be nil to disable the fallback.
func New(
	codec *security.TokenCodec,
	registry revocation.Registry,
	sessions sessionrepo.Repository,
	users userrepo.Repository,
	providerVerifier provider.Verifier,
) *Resolver {
	strategies := []verifier{
		&internalVerifier{codec: codec, registry: registry, sessions: sessions, users: users},
	}
	if providerVerifier != nil {
		strategies = append(strategies, &externalVerifier{provider: providerVerifier, users: users})
	}
	return &Resolver{strategies: strategies}
}

// Resolve returns the identity for the raw credential, or nil when it stays anonymous.
// Errors are store/transport failures only; every "this credential is no good" outcome
// is an anonymous result.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}
	for _, s := range r.strategies {
		ident, ok, err := s.resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return ident, nil
		}
	}
	return nil, nil
}

// internalVerifier resolves internally issued access tokens: signature and claims via
// the codec, jti against the revocation registry, then the live session and its owner.
type internalVerifier struct {
	codec    *security.TokenCodec
	registry revocation.Registry
	sessions sessionrepo.Repository
	users    userrepo.Repository
}

func (v *internalVerifier) resolve(ctx context.Context, token string) (*Identity, bool, error) {
	claims, err := v.codec.VerifyAccess(token)
	if err != nil {
		// expired and invalid both fall through to the next strategy
		return nil, false, nil
	}
	if v.registry.IsRevoked(claims.ID) {
		return nil, false, nil
	}
	sess, err := v.sessions.FindActiveByAccessTokenHash(ctx, security.HashToken(token))
	if err != nil {
		return nil, false, err
	}
	if sess == nil || sess.UserID != claims.Subject {
		return nil, false, nil
	}
	u, err := v.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, false, err
	}
	if !u.CanAuthenticate() {
		return nil, false, nil
	}
	// best effort: a failed activity touch must not reject an otherwise valid credential
	_ = v.sessions.TouchActivity(ctx, sess.ID, time.Now().UTC())
	return &Identity{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		SessionID:  sess.ID,
		Provenance: ProvenanceInternal,
	}, true, nil
}

// externalVerifier resolves provider-issued credentials by mapping the provider
// subject to a user via the stored external id link.
type externalVerifier struct {
	provider provider.Verifier
	users    userrepo.Repository
}

func (v *externalVerifier) resolve(ctx context.Context, token string) (*Identity, bool, error) {
	ident, err := v.provider.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, provider.ErrUnverified) {
			return nil, false, nil
		}
		return nil, false, err
	}
	u, err := v.users.GetByExternalID(ctx, ident.Subject)
	if err != nil {
		return nil, false, err
	}
	if !u.CanAuthenticate() {
		return nil, false, nil
	}
	return &Identity{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		Provenance: ProvenanceExternal,
	}, true, nil
}
