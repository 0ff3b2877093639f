package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/veridianlabs/leadvault/internal/core/domain"
	"github.com/veridianlabs/leadvault/internal/core/ports"
	"github.com/veridianlabs/leadvault/internal/infrastructure/metrics"
)

// accessGate composes the credential store, rate limiter and audit sink into
// a single authorization decision point. It is stateless: three lookups in
// fixed order (credential resolution, rate check, role check). The rate check
// runs before the role check so a role-probing client still consumes budget.
//
// Every ambiguity resolves to deny. A credential store error, a malformed
// token, a limiter error: all deny, never allow.
type accessGate struct {
	creds        ports.CredentialRepository
	limiter      ports.RateLimiter
	sink         ports.AuditSink
	logger       *slog.Logger
	defaultLimit int
	nowFunc      func() time.Time
}

// NewAccessGate wires the gate's three dependencies.
func NewAccessGate(creds ports.CredentialRepository, limiter ports.RateLimiter, sink ports.AuditSink, defaultLimit int, logger *slog.Logger) ports.AccessGate {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = 60
	}
	return &accessGate{
		creds:        creds,
		limiter:      limiter,
		sink:         sink,
		logger:       logger,
		defaultLimit: defaultLimit,
		nowFunc:      time.Now,
	}
}

// HashToken returns the hex-encoded SHA-256 of a raw API key. The raw key is
// never stored or logged.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (g *accessGate) Authorize(ctx context.Context, token, operation string, requiredRoles []domain.Role, sourceAddr string) domain.Decision {
	// 1. Credential resolution.
	if token == "" {
		return g.deny(ctx, domain.AnonymousKeyID, operation, domain.ReasonUnknownCredential, sourceAddr)
	}
	hash := HashToken(token)
	key, err := g.creds.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		g.logger.Error("credential store unreachable, denying", "operation", operation, "error", err)
		return g.deny(ctx, domain.AnonymousKeyID, operation, domain.ReasonUnknownCredential, sourceAddr)
	}
	if key == nil {
		return g.deny(ctx, domain.AnonymousKeyID, operation, domain.ReasonUnknownCredential, sourceAddr)
	}
	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return g.deny(ctx, domain.AnonymousKeyID, operation, domain.ReasonUnknownCredential, sourceAddr)
	}
	if !key.Active {
		return g.deny(ctx, key.ID, operation, domain.ReasonDisabledCredential, sourceAddr)
	}

	// 2. Rate check. Runs before the role check so probing different
	// operations cannot enumerate roles without spending budget.
	limit := key.RateLimit
	if limit <= 0 {
		limit = g.defaultLimit
	}
	allowed, remaining, err := g.limiter.Allow(ctx, key.ID, limit)
	if err != nil {
		g.logger.Error("rate limiter unreachable, denying", "key_id", key.ID, "operation", operation, "error", err)
		return g.deny(ctx, key.ID, operation, domain.ReasonRateLimited, sourceAddr)
	}
	if !allowed {
		return g.deny(ctx, key.ID, operation, domain.ReasonRateLimited, sourceAddr)
	}

	// 3. Role check.
	roleOK := false
	for _, r := range requiredRoles {
		if r == key.Role {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return g.deny(ctx, key.ID, operation, domain.ReasonRoleMismatch, sourceAddr)
	}

	g.record(ctx, domain.AccessLogEntry{
		KeyID:      key.ID,
		Operation:  operation,
		Outcome:    domain.OutcomeAllowed,
		SourceAddr: sourceAddr,
		CreatedAt:  g.nowFunc().UTC(),
	})
	metrics.GateDecisions.WithLabelValues(string(domain.OutcomeAllowed), "").Inc()

	return domain.Decision{
		Allowed:   true,
		KeyID:     key.ID,
		Role:      key.Role,
		Remaining: remaining,
	}
}

func (g *accessGate) deny(ctx context.Context, keyID, operation string, reason domain.DenyReason, sourceAddr string) domain.Decision {
	g.record(ctx, domain.AccessLogEntry{
		KeyID:      keyID,
		Operation:  operation,
		Outcome:    domain.OutcomeDenied,
		Reason:     reason,
		SourceAddr: sourceAddr,
		CreatedAt:  g.nowFunc().UTC(),
	})
	metrics.GateDecisions.WithLabelValues(string(domain.OutcomeDenied), string(reason)).Inc()
	return domain.Decision{
		Allowed: false,
		KeyID:   keyID,
		Reason:  reason,
	}
}

// record appends one access log entry. A sink failure never flips a
// decision; it is logged and counted.
func (g *accessGate) record(ctx context.Context, entry domain.AccessLogEntry) {
	if g.sink == nil {
		return
	}
	if err := g.sink.Append(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		g.logger.Error("failed to append access log entry", "key_id", entry.KeyID, "operation", entry.Operation, "error", err)
	}
}
