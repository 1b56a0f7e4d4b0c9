// Package revocation tracks token identifiers revoked before their natural expiry.
package revocation

import (
	"sync"
	"time"
)

// Registry records revoked token identifiers (jti). A revoked id must be rejected
// by verification even when signature and expiry checks alone would pass.
// Implementations shared across processes must be backed by a shared store;
// MemoryRegistry covers a single process.
type Registry interface {
	// Blacklist records jti as revoked until expiresAt, after which the underlying
	// token is expired anyway and the entry can be dropped.
	Blacklist(jti string, expiresAt time.Time)
	// IsRevoked reports whether jti has been blacklisted and the underlying token
	// has not yet expired on its own.
	IsRevoked(jti string) bool
	// Sweep removes entries whose underlying token has expired, to bound growth.
	// Correctness does not depend on it being called.
	Sweep()
}

// MemoryRegistry is an in-process Registry implementation.
type MemoryRegistry struct {
	mu   sync.RWMutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		m:    make(map[string]time.Time),
		nowF: time.Now,
	}
}

// Blacklist records jti as revoked until expiresAt.
func (r *MemoryRegistry) Blacklist(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[jti] = expiresAt
}

// IsRevoked reports whether jti is currently revoked.
func (r *MemoryRegistry) IsRevoked(jti string) bool {
	r.mu.RLock()
	expiresAt, ok := r.m[jti]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if !expiresAt.After(r.nowF()) {
		r.mu.Lock()
		delete(r.m, jti)
		r.mu.Unlock()
		return false
	}
	return true
}

// Sweep drops entries whose underlying token has expired.
func (r *MemoryRegistry) Sweep() {
	now := r.nowF()
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, expiresAt := range r.m {
		if !expiresAt.After(now) {
			delete(r.m, jti)
		}
	}
}
