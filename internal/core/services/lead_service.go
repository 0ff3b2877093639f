package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veridianlabs/leadvault/internal/core/domain"
	"github.com/veridianlabs/leadvault/internal/core/ports"
)

// Operation names recorded in the access log.
const (
	OpSubmitLead    = "submit_lead"
	OpListLeads     = "list_leads"
	OpGetLead       = "get_lead"
	OpUpdateLead    = "update_lead"
	OpDeleteLead    = "delete_lead"
	OpListAccessLog = "list_access_log"
	OpStorageStatus = "storage_status"
)

var anyRole = []domain.Role{domain.RoleUser, domain.RoleManager, domain.RoleAdmin, domain.RoleDeveloper}

type leadService struct {
	gate    ports.AccessGate
	store   ports.LeadStore
	sink    ports.AuditSink
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewLeadService creates the orchestrator over the access gate and the
// tiered store.
func NewLeadService(gate ports.AccessGate, store ports.LeadStore, sink ports.AuditSink, logger *slog.Logger) ports.LeadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &leadService{
		gate:    gate,
		store:   store,
		sink:    sink,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SubmitLead accepts a public form submission. Anonymous submitters are
// allowed; a presented credential must still pass the gate. Validation runs
// before any storage attempt.
func (s *leadService) SubmitLead(ctx context.Context, token string, lead *domain.Lead, sourceAddr string) (domain.StorageOutcome, error) {
	if token != "" {
		dec := s.gate.Authorize(ctx, token, OpSubmitLead, anyRole, sourceAddr)
		if !dec.Allowed {
			return domain.StorageOutcome{}, &domain.AccessDeniedError{Decision: dec}
		}
	} else if s.sink != nil {
		entry := domain.AccessLogEntry{
			KeyID:      domain.AnonymousKeyID,
			Operation:  OpSubmitLead,
			Outcome:    domain.OutcomeAllowed,
			SourceAddr: sourceAddr,
			CreatedAt:  s.nowFunc().UTC(),
		}
		if err := s.sink.Append(ctx, entry); err != nil {
			s.logger.Error("failed to append access log entry", "operation", OpSubmitLead, "error", err)
		}
	}

	now := s.nowFunc().UTC()
	lead.ID = uuid.New().String()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}

	if err := domain.ValidateLead(lead); err != nil {
		return domain.StorageOutcome{}, err
	}

	outcome, err := s.store.Save(ctx, lead)
	if err != nil {
		return outcome, err
	}
	if outcome.Degraded() {
		s.logger.Warn("lead saved with degraded durability", "lead_id", lead.ID, "tier", outcome.Tier)
	}
	return outcome, nil
}

func (s *leadService) ListLeads(ctx context.Context, token string, opts ports.ListOptions, sourceAddr string) ([]domain.Lead, error) {
	dec := s.gate.Authorize(ctx, token, OpListLeads, []domain.Role{domain.RoleManager, domain.RoleAdmin}, sourceAddr)
	if !dec.Allowed {
		return nil, &domain.AccessDeniedError{Decision: dec}
	}

	// Filtering, search and sort happen here, in memory, because the tiers
	// may disagree on query capability.
	leads, err := s.store.Find(ctx, domain.LeadQuery{})
	if err != nil {
		return nil, err
	}

	filtered := leads[:0:0]
	search := strings.ToLower(opts.Search)
	for _, lead := range leads {
		if opts.Status != "" && lead.Status != opts.Status {
			continue
		}
		if search != "" && !matchesSearch(lead, search) {
			continue
		}
		filtered = append(filtered, lead)
	}

	if err := sortLeads(filtered, opts.SortBy, opts.SortDesc); err != nil {
		return nil, err
	}
	return filtered, nil
}

func (s *leadService) GetLead(ctx context.Context, token, id, sourceAddr string) (*domain.Lead, error) {
	dec := s.gate.Authorize(ctx, token, OpGetLead, []domain.Role{domain.RoleManager, domain.RoleAdmin}, sourceAddr)
	if !dec.Allowed {
		return nil, &domain.AccessDeniedError{Decision: dec}
	}
	return s.store.Get(ctx, id)
}

func (s *leadService) UpdateLead(ctx context.Context, token, id string, patch domain.LeadPatch, sourceAddr string) (*domain.Lead, error) {
	dec := s.gate.Authorize(ctx, token, OpUpdateLead, []domain.Role{domain.RoleManager, domain.RoleAdmin}, sourceAddr)
	if !dec.Allowed {
		return nil, &domain.AccessDeniedError{Decision: dec}
	}
	if err := domain.ValidatePatch(patch); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, patch)
}

// DeleteLead removes a lead from every tier it exists in. Admin only.
func (s *leadService) DeleteLead(ctx context.Context, token, id, sourceAddr string) error {
	dec := s.gate.Authorize(ctx, token, OpDeleteLead, []domain.Role{domain.RoleAdmin}, sourceAddr)
	if !dec.Allowed {
		return &domain.AccessDeniedError{Decision: dec}
	}
	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !existed {
		return domain.ErrNotFound
	}
	return nil
}

// ListAccessLog returns recent gate decisions for operator review. The
// underlying log stays append-only; this is a read-back.
func (s *leadService) ListAccessLog(ctx context.Context, token string, limit int, sourceAddr string) ([]domain.AccessLogEntry, error) {
	dec := s.gate.Authorize(ctx, token, OpListAccessLog, []domain.Role{domain.RoleAdmin, domain.RoleDeveloper}, sourceAddr)
	if !dec.Allowed {
		return nil, &domain.AccessDeniedError{Decision: dec}
	}
	if s.sink == nil {
		return nil, nil
	}
	return s.sink.Recent(ctx, limit)
}

// StorageStatus exposes tier health and the pending reconciliation count to
// operators. Degraded durability is visible here, never to submitters.
func (s *leadService) StorageStatus(ctx context.Context, token, sourceAddr string) (map[string]any, error) {
	dec := s.gate.Authorize(ctx, token, OpStorageStatus, []domain.Role{domain.RoleAdmin, domain.RoleDeveloper}, sourceAddr)
	if !dec.Allowed {
		return nil, &domain.AccessDeniedError{Decision: dec}
	}

	tiers := make(map[string]string)
	for name, err := range s.store.Health(ctx) {
		if err != nil {
			tiers[name] = err.Error()
		} else {
			tiers[name] = "OK"
		}
	}

	pending, err := s.store.PendingReconciliation(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"tiers":                  tiers,
		"pending_reconciliation": pending,
	}, nil
}

func matchesSearch(lead domain.Lead, search string) bool {
	return strings.Contains(strings.ToLower(lead.Company), search) ||
		strings.Contains(strings.ToLower(lead.Name), search) ||
		strings.Contains(strings.ToLower(lead.Email), search)
}

// sortLeads orders leads by any scalar field in either direction.
func sortLeads(leads []domain.Lead, field string, desc bool) error {
	if field == "" {
		field = "created_at"
	}

	var less func(a, b domain.Lead) bool
	switch field {
	case "id":
		less = func(a, b domain.Lead) bool { return a.ID < b.ID }
	case "company":
		less = func(a, b domain.Lead) bool { return strings.ToLower(a.Company) < strings.ToLower(b.Company) }
	case "name":
		less = func(a, b domain.Lead) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "email":
		less = func(a, b domain.Lead) bool { return strings.ToLower(a.Email) < strings.ToLower(b.Email) }
	case "status":
		less = func(a, b domain.Lead) bool { return a.Status < b.Status }
	case "network":
		less = func(a, b domain.Lead) bool { return a.Network < b.Network }
	case "created_at":
		less = func(a, b domain.Lead) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		less = func(a, b domain.Lead) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return fmt.Errorf("%w: cannot sort by %q", domain.ErrValidation, field)
	}

	sort.SliceStable(leads, func(i, j int) bool {
		if desc {
			return less(leads[j], leads[i])
		}
		return less(leads[i], leads[j])
	})
	return nil
}
