// Package provider is the client for the external identity provider: an outside
// service that can independently authenticate a user and issue its own credential.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnverified is returned when the provider rejects a credential or sign-in.
// It is an expected negative outcome, not a transport failure.
var ErrUnverified = errors.New("provider: credential not verified")

// ExternalIdentity is the provider's view of an authenticated subject.
type ExternalIdentity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// Credentials is the pair returned by a provider-side sign-in.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Verifier is the subset used on the per-request resolution path.
type Verifier interface {
	// Verify checks a provider-issued token. Returns ErrUnverified when the token is
	// simply not acceptable; other errors indicate transport or provider failures.
	Verify(ctx context.Context, token string) (*ExternalIdentity, error)
}

// Client talks to the provider's HTTP API. Sign-in and email confirmation are invoked
// only from the auth service's login/verification paths, never from request resolution.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

const defaultTimeout = 10 * time.Second

// NewClient returns a Client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Verify checks a provider-issued token and returns the subject it authenticates.
func (c *Client) Verify(ctx context.Context, token string) (*ExternalIdentity, error) {
	var ident ExternalIdentity
	err := c.post(ctx, "/v1/token/verify", map[string]string{"token": token}, &ident)
	if err != nil {
		return nil, err
	}
	if ident.Subject == "" {
		return nil, ErrUnverified
	}
	return &ident, nil
}

// SignIn authenticates email/password against the provider and returns its credentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	var creds Credentials
	err := c.post(ctx, "/v1/token/sign-in", map[string]string{"email": email, "password": password}, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// ConfirmEmail tells the provider the subject's email address has been verified here.
// Best-effort from the caller's perspective; the caller decides whether to ignore errors.
func (c *Client) ConfirmEmail(ctx context.Context, externalID string) error {
	return c.post(ctx, "/v1/subjects/confirm-email", map[string]string{"sub": externalID}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if c.BaseURL == "" {
		return errors.New("provider: base URL not configured")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnverified
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("provider: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
}
