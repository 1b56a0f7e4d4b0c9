package server

import (
	"log"
	"net/http"

	"streamvault/backend/internal/identity/resolver"
	"streamvault/backend/internal/security"
)

// credentialFrom extracts the raw bearer credential: the Authorization header wins,
// the access cookie is the browser fallback.
func credentialFrom(r *http.Request) string {
	if token := security.ExtractBearer(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if token, ok := readAccessCookie(r); ok {
		return token
	}
	return ""
}

// resolveIdentity attaches the resolved identity, when any, to the request context.
// Anonymous requests pass through untouched; rejecting them is the job of requireAuth.
func resolveIdentity(res *resolver.Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := credentialFrom(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ident, err := res.Resolve(r.Context(), token)
		if err != nil {
			log.Printf("server: resolve identity: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if ident != nil {
			r = r.WithContext(WithIdentity(r.Context(), ident))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects anonymous requests with 401.
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
