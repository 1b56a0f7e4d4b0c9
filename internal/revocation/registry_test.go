package revocation

import (
	"testing"
	"time"
)

func TestMemoryRegistryBlacklist(t *testing.T) {
	r := NewMemoryRegistry()
	now := time.Now()

	if r.IsRevoked("jti-1") {
		t.Error("unknown jti should not be revoked")
	}
	r.Blacklist("jti-1", now.Add(time.Hour))
	if !r.IsRevoked("jti-1") {
		t.Error("blacklisted jti should be revoked")
	}
	r.Blacklist("", now.Add(time.Hour))
	if r.IsRevoked("") {
		t.Error("empty jti must be ignored")
	}
}

func TestMemoryRegistryExpiry(t *testing.T) {
	r := NewMemoryRegistry()
	base := time.Now()
	r.Blacklist("jti-1", base.Add(time.Minute))

	r.nowF = func() time.Time { return base.Add(2 * time.Minute) }
	if r.IsRevoked("jti-1") {
		t.Error("entry past the token's own expiry should not be revoked")
	}
	// The expired read dropped the entry.
	r.mu.RLock()
	_, ok := r.m["jti-1"]
	r.mu.RUnlock()
	if ok {
		t.Error("expired entry should have been removed on read")
	}
}

func TestMemoryRegistrySweep(t *testing.T) {
	r := NewMemoryRegistry()
	base := time.Now()
	r.Blacklist("old", base.Add(time.Minute))
	r.Blacklist("fresh", base.Add(time.Hour))

	r.nowF = func() time.Time { return base.Add(2 * time.Minute) }
	r.Sweep()

	r.mu.RLock()
	_, hasOld := r.m["old"]
	_, hasFresh := r.m["fresh"]
	r.mu.RUnlock()
	if hasOld {
		t.Error("sweep should drop expired entries")
	}
	if !hasFresh {
		t.Error("sweep must keep live entries")
	}
}
