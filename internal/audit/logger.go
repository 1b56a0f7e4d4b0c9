// Package audit records auth events (logins, refreshes, resets) best-effort.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"streamvault/backend/internal/audit/domain"
	auditrepo "streamvault/backend/internal/audit/repository"
)

// SentinelUserID is recorded for events with no resolved user (e.g. a failed login
// for an unknown email, where logging the attempted address would leak it).
const SentinelUserID = "_anonymous"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Logger writes a single audit event with explicit action/resource. Used by the auth
// service code paths. LogEvent is best-effort: failures are logged and do not affect
// the caller.
type Logger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// StoreLogger implements Logger using the audit repository and an optional IP extractor.
type StoreLogger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *StoreLogger {
	return &StoreLogger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *StoreLogger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if userID == "" {
		userID = SentinelUserID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}

// NopLogger discards events. For tests and wiring without a database.
type NopLogger struct{}

// LogEvent discards the event.
func (NopLogger) LogEvent(context.Context, string, string, string, string) {}
