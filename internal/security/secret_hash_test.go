package security

import "testing"

func TestHashTokenDeterministic(t *testing.T) {
	a := HashToken("some-token")
	b := HashToken("some-token")
	if a != b {
		t.Error("same input must hash identically")
	}
	if a == HashToken("other-token") {
		t.Error("different inputs must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("want 64 hex chars, got %d", len(a))
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("raw-value")
	if !TokenHashEqual("raw-value", stored) {
		t.Error("matching token should compare equal")
	}
	if TokenHashEqual("other", stored) {
		t.Error("non-matching token should not compare equal")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("32 bytes should encode to 64 hex chars, got %d", len(a))
	}
	b, err := GenerateSecret(32)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if a == b {
		t.Error("two secrets must not collide")
	}

	// Below-minimum requests are raised to 32 bytes.
	c, err := GenerateSecret(8)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(c) != 64 {
		t.Errorf("small request should still yield 64 hex chars, got %d", len(c))
	}
}
