package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"laundry-service/backend/internal/audit/domain"
	auditrepo "laundry-service/backend/internal/audit/repository"
	"laundry-service/backend/internal/telemetry"
	telemetrydomain "laundry-service/backend/internal/telemetry/domain"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged
// and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, outcome, metadata string)
}

// Logger persists audit events through the repository and mirrors them to the event emitter.
type Logger struct {
	repo        auditrepo.Repository
	emitter     telemetry.EventEmitter
	ipExtractor IPExtractor
	log         *slog.Logger
	nowF        func() time.Time
}

// NewLogger returns a Logger. repo, emitter and ipExtractor may be nil; a nil ipExtractor
// records the IP as "unknown".
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter, ipExtractor IPExtractor, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		repo:        repo,
		emitter:     emitter,
		ipExtractor: ipExtractor,
		log:         log,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit log entry and emits it as a telemetry event.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, outcome, metadata string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	now := l.nowF()
	if l.repo != nil {
		entry := &domain.AuditLog{
			ID:        uuid.New().String(),
			UserID:    userID,
			Action:    action,
			Resource:  resource,
			IP:        ip,
			Metadata:  metadata,
			CreatedAt: now,
		}
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.WarnContext(ctx, "audit: failed to log event", "action", action, "resource", resource, "error", err)
		}
	}
	var meta []byte
	if metadata != "" {
		meta = []byte(metadata)
	}
	telemetry.EmitAsync(l.emitter, ctx, &telemetrydomain.Event{
		UserID:    userID,
		EventType: action,
		Source:    resource,
		Outcome:   outcome,
		Metadata:  meta,
		CreatedAt: now,
	})
}
