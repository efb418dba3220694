package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/store"
)

// RequestContext carries the request-scoped facts recorded with every
// security event. It is resolved once at the handler boundary and passed
// explicitly; no service reads ambient request state.
type RequestContext struct {
	Email     string
	IP        string
	UserAgent string
}

// AuditService appends security-relevant events to the audit trail. Both log
// methods are fire-and-forget: a failed append never reaches the caller's
// control flow, it is only reported through slog.
type AuditService struct {
	events store.AuditStore
}

func NewAuditService(events store.AuditStore) *AuditService {
	return &AuditService{events: events}
}

// LogAuth records an authentication event attributed to an actor. actorID is
// nil for pre-authentication failures.
func (a *AuditService) LogAuth(ctx context.Context, kind models.AuditKind, actorID *uuid.UUID, success bool, reqCtx RequestContext) {
	a.append(ctx, kind, actorID, success, reqCtx, nil)
}

// LogSecurityEvent records a non-login security event (2FA lifecycle,
// password change) with free-form metadata.
func (a *AuditService) LogSecurityEvent(ctx context.Context, kind models.AuditKind, success bool, reqCtx RequestContext, metadata map[string]string) {
	a.append(ctx, kind, nil, success, reqCtx, metadata)
}

func (a *AuditService) append(ctx context.Context, kind models.AuditKind, actorID *uuid.UUID, success bool, reqCtx RequestContext, metadata map[string]string) {
	event := &models.AuditEvent{
		Kind:      kind,
		ActorID:   actorID,
		Success:   success,
		Email:     strings.ToLower(reqCtx.Email),
		IP:        reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			event.Metadata = datatypes.JSON(b)
		}
	}

	if err := a.events.AppendEvent(ctx, event); err != nil {
		slog.Error("audit append failed", "kind", string(kind), "error", err)
	}
}

// LoginRateLimiter gates sign-in attempts per identity over a trailing
// window. It counts audit events attributed to the email rather than keeping
// a dedicated attempt ledger, so any recent security event for the identity
// counts toward the threshold. Coarse on purpose.
type LoginRateLimiter struct {
	events    store.AuditStore
	window    time.Duration
	threshold int64
}

func NewLoginRateLimiter(events store.AuditStore) *LoginRateLimiter {
	return &LoginRateLimiter{
		events:    events,
		window:    time.Hour,
		threshold: 10,
	}
}

// Allow reports whether another sign-in attempt for email may proceed. It
// fails open on store errors so an audit outage cannot lock everyone out.
func (l *LoginRateLimiter) Allow(ctx context.Context, email string) bool {
	count, err := l.events.CountEventsSince(ctx, email, time.Now().Add(-l.window))
	if err != nil {
		slog.Error("rate limit count failed", "error", err)
		return true
	}
	return count < l.threshold
}
