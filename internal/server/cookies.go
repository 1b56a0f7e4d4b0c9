package server

import (
	"net/http"
	"strings"
)

// AccessCookieName is the canonical access token cookie name.
const AccessCookieName = "sv_access"

// readAccessCookie returns the trimmed access token cookie value when present.
func readAccessCookie(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(AccessCookieName)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// writeAccessCookie sets the access token cookie for browser clients. API clients
// can ignore it and send the Authorization header instead.
func writeAccessCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    strings.TrimSpace(token),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAccessCookie expires the access token cookie.
func clearAccessCookie(w http.ResponseWriter, secure bool) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
