// Package notify delivers out-of-band messages (reset and verification links).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Payload is one outbound notification. Link carries the raw secret token embedded in
// an out-of-band URL; it must never be logged.
type Payload struct {
	Template string `json:"template"` // e.g. "password_reset", "email_verification"
	Link     string `json:"link"`
}

// Notifier sends a notification to a destination (an email address here).
// Delivery is fire-and-forget: a Send failure must never fail the operation that
// triggered it. Callers log and move on.
type Notifier interface {
	Send(ctx context.Context, destination string, payload Payload) error
}

// WebhookNotifier POSTs notifications to a delivery endpoint.
type WebhookNotifier struct {
	URL        string
	HTTPClient *http.Client
}

// NewWebhookNotifier returns a notifier that delivers via the given webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the notification. Returns an error on transport failure or non-200.
func (n *WebhookNotifier) Send(ctx context.Context, destination string, payload Payload) error {
	body := map[string]any{
		"to":       destination,
		"template": payload.Template,
		"link":     payload.Link,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogNotifier records that a notification would have been sent. For dev and tests.
// It does not log the link, which embeds the raw secret.
type LogNotifier struct{}

// Send logs the destination and template only.
func (LogNotifier) Send(_ context.Context, destination string, payload Payload) error {
	log.Printf("notify: would send %s to %s", payload.Template, destination)
	return nil
}
