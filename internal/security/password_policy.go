package security

// PasswordViolation identifies one failed password-policy rule.
type PasswordViolation string

const (
	PasswordTooShort         PasswordViolation = "TOO_SHORT"
	PasswordMissingUppercase PasswordViolation = "MISSING_UPPERCASE"
	PasswordMissingLowercase PasswordViolation = "MISSING_LOWERCASE"
	PasswordMissingDigit     PasswordViolation = "MISSING_DIGIT"
)

const minPasswordLen = 8

// CheckPassword validates password against the policy (min 8 chars, at least one
// upper-case letter, one lower-case letter, and one digit) independently of hashing.
// It returns every violated rule, not just the first; an empty slice means the
// password is acceptable.
func CheckPassword(password string) []PasswordViolation {
	var violations []PasswordViolation
	if len(password) < minPasswordLen {
		violations = append(violations, PasswordTooShort)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		violations = append(violations, PasswordMissingUppercase)
	}
	if !hasLower {
		violations = append(violations, PasswordMissingLowercase)
	}
	if !hasDigit {
		violations = append(violations, PasswordMissingDigit)
	}
	return violations
}
