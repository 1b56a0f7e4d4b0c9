package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamvault/backend/internal/identity/resolver"
	"streamvault/backend/internal/identity/service"
)

func TestAccessCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAccessCookie(rec, "token-value", 900, false)

	resp := rec.Result()
	cookies := resp.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("want 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != AccessCookieName || c.Value != "token-value" {
		t.Errorf("unexpected cookie %+v", c)
	}
	if !c.HttpOnly || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes wrong: %+v", c)
	}
	if c.MaxAge != 900 {
		t.Errorf("MaxAge = %d", c.MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, ok := readAccessCookie(req)
	if !ok || got != "token-value" {
		t.Errorf("readAccessCookie = %q, %v", got, ok)
	}
}

func TestClearAccessCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	clearAccessCookie(rec, true)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("want 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "" || c.MaxAge != -1 {
		t.Errorf("clear cookie should expire immediately, got %+v", c)
	}
	if !c.Secure {
		t.Error("secure flag not carried through")
	}
}

func TestReadAccessCookieAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := readAccessCookie(req); ok {
		t.Error("absent cookie should not read")
	}
}

func TestCredentialFromPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "cookie-token"})
	if got := credentialFrom(req); got != "header-token" {
		t.Errorf("credentialFrom = %q, want header-token", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "cookie-token"})
	if got := credentialFrom(req2); got != "cookie-token" {
		t.Errorf("credentialFrom = %q, want cookie-token", got)
	}

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := credentialFrom(req3); got != "" {
		t.Errorf("credentialFrom = %q, want empty", got)
	}
}

func TestIdentityContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := IdentityFrom(req.Context()); ok {
		t.Error("fresh context should carry no identity")
	}
	ident := &resolver.Identity{UserID: "user-1", Role: "user", Provenance: resolver.ProvenanceInternal}
	ctx := WithIdentity(req.Context(), ident)
	got, ok := IdentityFrom(ctx)
	if !ok || got.UserID != "user-1" {
		t.Errorf("IdentityFrom = %+v, %v", got, ok)
	}
}

func TestRequireAuth(t *testing.T) {
	called := false
	h := requireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request: want 401, got %d", rec.Code)
	}
	if called {
		t.Error("handler must not run for anonymous requests")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &resolver.Identity{UserID: "user-1"}))
	h(rec, req)
	if rec.Code != http.StatusOK || !called {
		t.Errorf("authenticated request: want handler to run, got %d", rec.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	s := &Server{}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Field: "password", Reasons: []string{"TOO_SHORT"}}, http.StatusBadRequest},
		{"conflict", service.ErrEmailAlreadyRegistered, http.StatusConflict},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"token", service.ErrInvalidToken, http.StatusUnauthorized},
		{"mismatch", service.ErrTokenUserMismatch, http.StatusUnauthorized},
		{"unknown", errors.New("pg down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeServiceError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if tc.want == http.StatusInternalServerError {
				// Internal detail never leaks to the client.
				if body["error"] != "internal server error" {
					t.Errorf("internal error leaked: %v", body)
				}
			}
		})
	}
}

func TestWriteServiceErrorValidationBody(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.writeServiceError(rec, &service.ValidationError{Field: "password", Reasons: []string{"TOO_SHORT", "MISSING_DIGIT"}})

	var body struct {
		Error   string   `json:"error"`
		Field   string   `json:"field"`
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Field != "password" || len(body.Reasons) != 2 {
		t.Errorf("unexpected body %+v", body)
	}
}
