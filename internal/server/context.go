package server

import (
	"context"

	"streamvault/backend/internal/identity/resolver"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the resolved request identity.
// Handlers read it back via IdentityFrom.
func WithIdentity(ctx context.Context, ident *resolver.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom returns the resolved identity from context and true if set;
// otherwise nil, false.
func IdentityFrom(ctx context.Context) (*resolver.Identity, bool) {
	v, ok := ctx.Value(identityKey).(*resolver.Identity)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
