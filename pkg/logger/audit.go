package logger

import (
	"context"
	"log/slog"
	"time"
)

// AssessmentEvent records one assessed login attempt
type AssessmentEvent struct {
	AccountID string
	SourceID  string
	Outcome   string
	Score     int
	Tier      string
	Factors   []string
}

// LockoutEvent records a lock, extension, or unlock
type LockoutEvent struct {
	AccountID string
	Action    string // "locked", "extended", "unlocked", "expired"
	Reason    string
	Until     *time.Time
	Actor     string // "engine" or the administrative caller
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAssessment logs an assessed login attempt. Elevated tiers log at
// warn so they surface in alerting.
func (al *AuditLogger) LogAssessment(event AssessmentEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "assessment"),
		slog.String("account_id", SanitizedAccountID(event.AccountID)),
		slog.String("source_id", event.SourceID),
		slog.String("outcome", event.Outcome),
		slog.Int("score", event.Score),
		slog.String("tier", event.Tier),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if len(event.Factors) > 0 {
		attrs = append(attrs, slog.Any("factors", event.Factors))
	}

	level := slog.LevelInfo
	if event.Tier == "HIGH" {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogLockout logs lockout state transitions
func (al *AuditLogger) LogLockout(event LockoutEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("account_id", SanitizedAccountID(event.AccountID)),
		slog.String("action", event.Action),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Until != nil {
		attrs = append(attrs, slog.String("locked_until", event.Until.UTC().Format(time.RFC3339)))
	}
	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", event.Actor))
	}

	if event.Action == "locked" || event.Action == "extended" {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	}
}

// LogRateLimitDenial logs a denied request from a source identifier
func (al *AuditLogger) LogRateLimitDenial(sourceID string, limit int) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "rate_limit"),
		slog.String("source_id", sourceID),
		slog.Int("limit", limit),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogAdminAction logs actions taken through the administrative API
func (al *AuditLogger) LogAdminAction(action, accountID, remoteAddr string) {
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		slog.String("audit_type", "admin"),
		slog.String("event_type", action),
		slog.String("account_id", SanitizedAccountID(accountID)),
		slog.String("remote_addr", remoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
