package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, has a bad signature,
	// the wrong type, or the wrong issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is well-formed and correctly signed
	// but past its expiry. Callers branch on this (e.g. refresh-vs-reject).
	ErrTokenExpired = errors.New("token expired")
)

const refreshTokenType = "refresh"

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id"`
}

// RefreshClaims holds JWT claims for the refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	TokenType string `json:"type"`
}

// TokenPair is an access/refresh pair issued for one login event.
// Both members embed the same SessionID.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Subject identifies the user a token pair is issued for.
type Subject struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
}

// TokenCodec issues and validates HS256 access and refresh tokens. Access and refresh
// tokens are signed with distinct secrets so leaking one cannot forge the other type.
// Stateless; session and revocation checks live with the callers.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec returns a TokenCodec. Secrets must be at least 32 bytes and distinct;
// refreshTTL must exceed accessTTL. Returns an error otherwise.
func NewTokenCodec(accessSecret, refreshSecret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 {
		return nil, errors.New("token secrets must be at least 32 bytes")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if refreshTTL <= accessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	return &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		audience:      audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// IssuePair issues an access/refresh pair for subject. If sessionID is empty a random
// one is generated; the same id is embedded in both members so a refresh call can
// recover its session without a prior store lookup.
func (c *TokenCodec) IssuePair(subject Subject, sessionID string) (*TokenPair, error) {
	if sessionID == "" {
		id, err := randomID()
		if err != nil {
			return nil, err
		}
		sessionID = id
	}
	access, _, accessExp, err := c.IssueAccess(subject, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, _, refreshExp, err := c.IssueRefresh(subject.UserID, sessionID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess issues a short-lived access JWT for the given subject and session.
// Returns the token string, its jti, and expiration time.
func (c *TokenCodec) IssueAccess(subject Subject, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = randomID()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(c.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject.UserID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:       subject.Email,
		Role:        subject.Role,
		Permissions: subject.Permissions,
		SessionID:   sessionID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(c.accessSecret)
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT bound to the given user and session.
// Returns the token string, its jti, and expiration time.
func (c *TokenCodec) IssueRefresh(userID, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = randomID()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(c.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		TokenType: refreshTokenType,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(c.refreshSecret)
	return token, jti, expiresAt, err
}

// VerifyAccess parses and validates an access token against the access secret.
// Returns the claims, or ErrTokenExpired when only the expiry check failed,
// or ErrInvalidToken for every other failure (signature, shape, iss, aud).
func (c *TokenCodec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.accessSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token against the refresh secret.
// Tokens without type "refresh" are invalid even when correctly signed.
func (c *TokenCodec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.refreshSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	if err := c.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != c.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == c.audience {
			return nil
		}
	}
	return ErrInvalidToken
}

// ExtractBearer returns the token from an Authorization header value. The value must be
// exactly two space-separated parts with scheme "Bearer"; anything else returns "".
func ExtractBearer(header string) string {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// ExpirationOf returns the exp claim of a token without verifying its signature.
// Returns ok false when the token is malformed or carries no expiry.
func ExpirationOf(tokenString string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpired reports whether the token's exp claim has passed. Malformed tokens and
// tokens without an expiry count as expired.
func IsExpired(tokenString string) bool {
	exp, ok := ExpirationOf(tokenString)
	if !ok {
		return true
	}
	return !exp.After(time.Now())
}

func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
