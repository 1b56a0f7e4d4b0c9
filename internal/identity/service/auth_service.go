package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"streamvault/backend/internal/audit"
	"streamvault/backend/internal/identity/provider"
	"streamvault/backend/internal/notify"
	"streamvault/backend/internal/revocation"
	"streamvault/backend/internal/secrettoken"
	secretdomain "streamvault/backend/internal/secrettoken/domain"
	"streamvault/backend/internal/security"
	sessiondomain "streamvault/backend/internal/session/domain"
	sessionrepo "streamvault/backend/internal/session/repository"
	userdomain "streamvault/backend/internal/user/domain"
)

const maxEmailLen = 254

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthResult holds the outcome of Register, Login, or Refresh.
type AuthResult struct {
	UserID           string
	Email            string
	SessionID        string
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Rotate(ctx context.Context, sessionID, oldRefreshHash string, pair sessionrepo.NewPair) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
}

// SecretIssuer issues and redeems single-use secret tokens.
type SecretIssuer interface {
	Issue(ctx context.Context, userID string, purpose secretdomain.Purpose) (string, error)
	Redeem(ctx context.Context, raw string, purpose secretdomain.Purpose) (string, error)
}

// Provider is the external identity provider surface used by login and verification.
// Verification of provider tokens on the request path lives in the resolver instead.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*provider.Credentials, error)
	ConfirmEmail(ctx context.Context, externalID string) error
}

// AuthService implements registration, login, logout, refresh, password reset, and
// email verification. Constructed once at process start with collaborators injected;
// there is no package-level instance.
type AuthService struct {
	users       UserRepo
	sessions    SessionRepo
	secrets     SecretIssuer
	hasher      *security.Hasher
	codec       *security.TokenCodec
	registry    revocation.Registry
	notifier    notify.Notifier
	provider    Provider // nil when no external provider is configured
	auditor     audit.Logger
	sessionTTL  time.Duration
	rememberTTL time.Duration
	linkBaseURL string
	tracer      trace.Tracer
}

// NewAuthService returns an AuthService with the given dependencies. provider may be
// nil. linkBaseURL is the public URL prefix for reset/verification links.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	secrets SecretIssuer,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	registry revocation.Registry,
	notifier notify.Notifier,
	prov Provider,
	auditor audit.Logger,
	sessionTTL, rememberTTL time.Duration,
	linkBaseURL string,
) *AuthService {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		secrets:     secrets,
		hasher:      hasher,
		codec:       codec,
		registry:    registry,
		notifier:    notifier,
		provider:    prov,
		auditor:     auditor,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
		linkBaseURL: strings.TrimRight(linkBaseURL, "/"),
		tracer:      otel.Tracer("streamvault/backend/internal/identity/service"),
	}
}

// Register creates a user with the given email and password, opens a session, and
// issues a token pair. The account starts unverified; a verification token is issued
// and handed to the notifier (best-effort).
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if violations := security.CheckPassword(password); len(violations) > 0 {
		reasons := make([]string, len(violations))
		for i, v := range violations {
			reasons[i] = string(v)
		}
		return nil, validationError("password", reasons...)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		Role:         userdomain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, validationError("user", err.Error())
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	result, err := s.openSession(ctx, u, false)
	if err != nil {
		return nil, err
	}

	s.sendSecret(ctx, u, secretdomain.PurposeEmailVerification)
	s.auditor.LogEvent(ctx, u.ID, "register", "user", "")
	return result, nil
}

// Login authenticates email/password, opens a session (honoring rememberMe), and
// returns a token pair. Absent, inactive, and suspended accounts fail exactly like a
// wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.CanAuthenticate() {
		s.auditor.LogEvent(ctx, "", "login_failure", "session", "")
		return nil, ErrInvalidCredentials
	}

	if u.PasswordHash == "" {
		// Provider-only account: no local hash to check. Delegate the credential check
		// to the provider when one is configured and the account is linked.
		if err := s.providerSignIn(ctx, u, email, password); err != nil {
			s.auditor.LogEvent(ctx, u.ID, "login_failure", "session", "")
			return nil, err
		}
	} else if err := s.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		s.auditor.LogEvent(ctx, u.ID, "login_failure", "session", "")
		return nil, ErrInvalidCredentials
	}

	result, err := s.openSession(ctx, u, rememberMe)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		log.Printf("auth: update last login for %s: %v", u.ID, err)
	}
	s.auditor.LogEvent(ctx, u.ID, "login_success", "session", "")
	return result, nil
}

// Refresh validates the refresh token, rotates the session's token pair with a
// compare-and-swap, and returns the new pair. claimedUserID, when non-empty, is the
// caller-asserted identity and must own the token. A rotation conflict means the
// presented refresh material was already consumed and surfaces as ErrInvalidToken,
// forcing re-login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, claimedUserID string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claimedUserID != "" && claimedUserID != claims.Subject {
		return nil, ErrTokenUserMismatch
	}

	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !sess.Live(now) {
		return nil, ErrInvalidToken
	}
	if sess.UserID != claims.Subject {
		return nil, ErrTokenUserMismatch
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !u.CanAuthenticate() {
		return nil, ErrInvalidToken
	}

	pair, err := s.codec.IssuePair(subjectOf(u), sess.ID)
	if err != nil {
		return nil, err
	}
	rotated, err := s.sessions.Rotate(ctx, sess.ID, security.HashToken(refreshToken), sessionrepo.NewPair{
		AccessTokenHash:  security.HashToken(pair.AccessToken),
		RefreshTokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt:        now.Add(s.window(sess.RememberMe)),
	})
	if err != nil {
		if errors.Is(err, sessionrepo.ErrRotationConflict) {
			s.auditor.LogEvent(ctx, u.ID, "refresh_conflict", "session", sess.ID)
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	s.auditor.LogEvent(ctx, u.ID, "refresh", "session", rotated.ID)
	return authResult(u, pair), nil
}

// Logout revokes the session behind the presented tokens and blacklists the access
// token's jti. Best-effort and idempotent: it never returns an error, so calling it
// with garbage, with an already-revoked session, or twice reports success each time.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer span.End()

	var userID, sessionID string
	if claims, err := s.codec.VerifyAccess(accessToken); err == nil {
		userID, sessionID = claims.Subject, claims.SessionID
		if claims.ExpiresAt != nil {
			s.registry.Blacklist(claims.ID, claims.ExpiresAt.Time)
		}
	}
	if sessionID == "" && refreshToken != "" {
		if claims, err := s.codec.VerifyRefresh(refreshToken); err == nil {
			userID, sessionID = claims.Subject, claims.SessionID
		}
	}
	if sessionID == "" {
		return
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		log.Printf("auth: logout revoke session %s: %v", sessionID, err)
		return
	}
	s.auditor.LogEvent(ctx, userID, "logout", "session", sessionID)
}

// RequestPasswordReset issues a reset token and hands it to the notifier when the
// email belongs to an account that can authenticate. It reports success either way so
// the endpoint cannot be used to probe which emails are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "auth.request_password_reset")
	defer span.End()

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.CanAuthenticate() {
		return nil
	}
	s.sendSecret(ctx, u, secretdomain.PurposePasswordReset)
	s.auditor.LogEvent(ctx, u.ID, "password_reset_requested", "secret_token", "")
	return nil
}

// ConfirmPasswordReset redeems the reset token, validates and applies the new
// password, and revokes every session of the owning user, forcing re-login everywhere.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	ctx, span := s.tracer.Start(ctx, "auth.confirm_password_reset")
	defer span.End()

	userID, err := s.secrets.Redeem(ctx, rawToken, secretdomain.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, secrettoken.ErrExpiredOrInvalid) {
			return ErrInvalidToken
		}
		return err
	}
	if violations := security.CheckPassword(newPassword); len(violations) > 0 {
		reasons := make([]string, len(violations))
		for i, v := range violations {
			reasons[i] = string(v)
		}
		return validationError("password", reasons...)
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hashed); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, userID, "password_reset_confirmed", "user", "")
	return nil
}

// SendEmailVerification issues a fresh verification token for the email's account and
// hands it to the notifier. Like RequestPasswordReset it reports success whether or
// not the email exists; already-verified accounts are left alone.
func (s *AuthService) SendEmailVerification(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "auth.send_email_verification")
	defer span.End()

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.CanAuthenticate() || u.EmailVerified {
		return nil
	}
	s.sendSecret(ctx, u, secretdomain.PurposeEmailVerification)
	return nil
}

// VerifyEmail redeems the verification token and marks the owning user's email as
// verified. The external identity provider is informed best-effort; a failure there
// does not fail the verification.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	ctx, span := s.tracer.Start(ctx, "auth.verify_email")
	defer span.End()

	userID, err := s.secrets.Redeem(ctx, rawToken, secretdomain.PurposeEmailVerification)
	if err != nil {
		if errors.Is(err, secrettoken.ErrExpiredOrInvalid) {
			return ErrInvalidToken
		}
		return err
	}
	if err := s.users.SetEmailVerified(ctx, userID); err != nil {
		return err
	}
	if s.provider != nil {
		if u, err := s.users.GetByID(ctx, userID); err == nil && u != nil && u.ExternalID != "" {
			if err := s.provider.ConfirmEmail(ctx, u.ExternalID); err != nil {
				log.Printf("auth: provider email confirmation for %s: %v", userID, err)
			}
		}
	}
	s.auditor.LogEvent(ctx, userID, "email_verified", "user", "")
	return nil
}

// ListSessions returns the user's sessions, most recently active first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// RevokeSession revokes one session of the given user. Unlike Logout this is an
// explicit management action and does report store failures.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return ErrInvalidToken
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, userID, "session_revoked", "session", sessionID)
	return nil
}

func (s *AuthService) providerSignIn(ctx context.Context, u *userdomain.User, email, password string) error {
	if s.provider == nil || u.ExternalID == "" {
		return ErrInvalidCredentials
	}
	if _, err := s.provider.SignIn(ctx, email, password); err != nil {
		if errors.Is(err, provider.ErrUnverified) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// openSession issues a pair and persists the session carrying its hashes. Both pair
// members embed the same generated session id.
func (s *AuthService) openSession(ctx context.Context, u *userdomain.User, rememberMe bool) (*AuthResult, error) {
	pair, err := s.codec.IssuePair(subjectOf(u), "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               pair.SessionID,
		UserID:           u.ID,
		AccessTokenHash:  security.HashToken(pair.AccessToken),
		RefreshTokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt:        now.Add(s.window(rememberMe)),
		RememberMe:       rememberMe,
		LastActivityAt:   &now,
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return authResult(u, pair), nil
}

// sendSecret issues a secret token and hands the link to the notifier. Delivery is
// fire-and-forget: issuance already succeeded and is not rolled back on failure.
func (s *AuthService) sendSecret(ctx context.Context, u *userdomain.User, purpose secretdomain.Purpose) {
	raw, err := s.secrets.Issue(ctx, u.ID, purpose)
	if err != nil {
		log.Printf("auth: issue %s token for %s: %v", purpose, u.ID, err)
		return
	}
	payload := notify.Payload{
		Template: string(purpose),
		Link:     fmt.Sprintf("%s/%s?token=%s", s.linkBaseURL, linkPath(purpose), raw),
	}
	if err := s.notifier.Send(ctx, u.Email, payload); err != nil {
		log.Printf("auth: notify %s for %s: %v", purpose, u.ID, err)
	}
}

func (s *AuthService) window(rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberTTL
	}
	return s.sessionTTL
}

func linkPath(purpose secretdomain.Purpose) string {
	if purpose == secretdomain.PurposePasswordReset {
		return "reset-password"
	}
	return "verify-email"
}

func subjectOf(u *userdomain.User) security.Subject {
	return security.Subject{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions(),
	}
}

func authResult(u *userdomain.User, pair *security.TokenPair) *AuthResult {
	return &AuthResult{
		UserID:           u.ID,
		Email:            u.Email,
		SessionID:        pair.SessionID,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresAt:        pair.ExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email", "required")
	}
	if len(email) > maxEmailLen {
		return validationError("email", "too long")
	}
	if !emailPattern.MatchString(email) {
		return validationError("email", "malformed")
	}
	return nil
}
