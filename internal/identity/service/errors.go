package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the auth service; the HTTP layer maps them to status codes.
// Authentication failures are deliberately generic: the message never reveals which
// half of a check failed (unknown email vs wrong password, bad signature vs expiry).
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidToken           = errors.New("invalid or expired token")
	// ErrTokenUserMismatch means a refresh token was presented alongside a claimed
	// identity that does not own it.
	ErrTokenUserMismatch = errors.New("token user mismatch")
)

// ValidationError reports malformed input. Unlike authentication errors its detail can
// be specific; Reasons carries every violated rule for the field.
type ValidationError struct {
	Field   string
	Reasons []string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(e.Reasons, ", "))
}

func validationError(field string, reasons ...string) *ValidationError {
	return &ValidationError{Field: field, Reasons: reasons}
}
