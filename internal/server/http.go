// Package server exposes the authentication engine over HTTP with JSON bodies.
//
// Endpoints:
//
//	POST   /v1/auth/register               create an account and open a session
//	POST   /v1/auth/login                  password login
//	POST   /v1/auth/refresh                rotate a token pair
//	POST   /v1/auth/logout                 revoke the current session (always 200)
//	POST   /v1/auth/password-reset          request a reset token by email
//	POST   /v1/auth/password-reset/confirm  redeem the token and set a new password
//	POST   /v1/auth/verify-email            redeem a verification token
//	POST   /v1/auth/verify-email/resend     request a fresh verification token
//	GET    /v1/me                           the resolved identity
//	GET    /v1/sessions                     the caller's sessions
//	DELETE /v1/sessions/{id}                revoke one of the caller's sessions
//	GET    /healthz                         liveness
//
// All error responses are JSON of the form {"error":"..."}.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"streamvault/backend/internal/identity/resolver"
	"streamvault/backend/internal/identity/service"
	sessiondomain "streamvault/backend/internal/session/domain"
)

// Server wires the auth service and resolver into an http.Handler.
type Server struct {
	auth          *service.AuthService
	resolver      *resolver.Resolver
	secureCookies bool
	accessTTL     time.Duration
}

// New returns a Server. secureCookies should be true behind TLS.
func New(auth *service.AuthService, res *resolver.Resolver, secureCookies bool, accessTTL time.Duration) *Server {
	return &Server{auth: auth, resolver: res, secureCookies: secureCookies, accessTTL: accessTTL}
}

// Handler returns the routed handler with identity resolution applied to every request.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /v1/auth/password-reset", s.handlePasswordResetRequest)
	mux.HandleFunc("POST /v1/auth/password-reset/confirm", s.handlePasswordResetConfirm)
	mux.HandleFunc("POST /v1/auth/verify-email", s.handleVerifyEmail)
	mux.HandleFunc("POST /v1/auth/verify-email/resend", s.handleVerifyEmailResend)
	mux.HandleFunc("GET /v1/me", requireAuth(s.handleMe))
	mux.HandleFunc("GET /v1/sessions", requireAuth(s.handleListSessions))
	mux.HandleFunc("DELETE /v1/sessions/{id}", requireAuth(s.handleRevokeSession))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return resolveIdentity(s.resolver, mux)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id,omitempty"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type sessionResponse struct {
	ID             string     `json:"id"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RememberMe     bool       `json:"remember_me"`
	Current        bool       `json:"current"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeAccessCookie(w, result.AccessToken, int(s.accessTTL.Seconds()), s.secureCookies)
	writeJSON(w, http.StatusCreated, toTokenResponse(result))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.auth.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeAccessCookie(w, result.AccessToken, int(s.accessTTL.Seconds()), s.secureCookies)
	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.auth.Refresh(r.Context(), req.RefreshToken, req.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeAccessCookie(w, result.AccessToken, int(s.accessTTL.Seconds()), s.secureCookies)
	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

// handleLogout always reports success. The access token can come from the header or
// the cookie; the refresh token, when the client still holds one, from the body.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.Body != nil {
		// body is optional for logout
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	s.auth.Logout(r.Context(), credentialFrom(r), req.RefreshToken)
	clearAccessCookie(w, s.secureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "email_verified"})
}

func (s *Server) handleVerifyEmailResend(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.SendEmailVerification(r.Context(), req.Email); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    ident.UserID,
		"email":      ident.Email,
		"role":       ident.Role,
		"session_id": ident.SessionID,
		"provenance": string(ident.Provenance),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())
	sessions, err := s.auth.ListSessions(r.Context(), ident.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess, ident.SessionID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if err := s.auth.RevokeSession(r.Context(), ident.UserID, sessionID); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			// not found and not-owned look the same to the caller
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// writeServiceError maps service errors onto HTTP statuses. Anything unrecognized is a
// 500 with a generic body; the detail goes to the log only.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"field":   verr.Field,
			"reasons": verr.Reasons,
		})
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenUserMismatch):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("server: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func toTokenResponse(r *service.AuthResult) tokenResponse {
	return tokenResponse{
		UserID:           r.UserID,
		Email:            r.Email,
		SessionID:        r.SessionID,
		AccessToken:      r.AccessToken,
		RefreshToken:     r.RefreshToken,
		ExpiresAt:        r.ExpiresAt,
		RefreshExpiresAt: r.RefreshExpiresAt,
	}
}

func toSessionResponse(sess *sessiondomain.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:             sess.ID,
		ExpiresAt:      sess.ExpiresAt,
		RememberMe:     sess.RememberMe,
		Current:        sess.ID == currentID,
		LastActivityAt: sess.LastActivityAt,
		CreatedAt:      sess.CreatedAt,
	}
}
