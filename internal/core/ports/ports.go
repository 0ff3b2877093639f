package ports

import (
	"context"

	"github.com/veridianlabs/leadvault/internal/core/domain"
)

// LeadRepository is the primary-database tier: a document-oriented read/write
// interface keyed by lead ID. Implementations validate required fields on
// insert and reject documents that fail validation.
type LeadRepository interface {
	CreateLead(ctx context.Context, lead *domain.Lead) error
	UpsertLead(ctx context.Context, lead *domain.Lead) error
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	ListLeads(ctx context.Context, query domain.LeadQuery) ([]domain.Lead, error)
	UpdateLead(ctx context.Context, lead *domain.Lead) error
	DeleteLead(ctx context.Context, id string) error
	LeadExists(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// CredentialRepository holds API-key records. Secrets are stored hashed and
// resolved by hash, never by plaintext comparison.
type CredentialRepository interface {
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
	DeleteAPIKey(ctx context.Context, id string) error
}

// AuditSink is the append-only record of every gate decision.
type AuditSink interface {
	Append(ctx context.Context, entry domain.AccessLogEntry) error
	Recent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error)
}

// RateLimiter tracks request counts per credential within fixed windows.
// Allow must be an atomic check-and-increment: it increments and returns
// true only while the window count is below limit.
type RateLimiter interface {
	Allow(ctx context.Context, keyID string, limit int) (allowed bool, remaining int, err error)
}

// AccessGate authorizes or rejects an inbound operation before it reaches
// business logic, writing exactly one access log entry per evaluation.
type AccessGate interface {
	Authorize(ctx context.Context, token, operation string, requiredRoles []domain.Role, sourceAddr string) domain.Decision
}

// LeadStore is the tiered write/read path for lead records.
type LeadStore interface {
	Save(ctx context.Context, lead *domain.Lead) (domain.StorageOutcome, error)
	Find(ctx context.Context, query domain.LeadQuery) ([]domain.Lead, error)
	Get(ctx context.Context, id string) (*domain.Lead, error)
	Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error)
	Delete(ctx context.Context, id string) (bool, error)
	Reconcile(ctx context.Context) (int, error)
	PendingReconciliation(ctx context.Context) (int, error)
	Health(ctx context.Context) map[string]error
}

// ListOptions shape the in-memory projection LeadService applies over
// LeadStore.Find results.
type ListOptions struct {
	Status    domain.LeadStatus
	Search    string // case-insensitive substring over company/name/email
	SortBy    string // id, company, name, email, status, network, created_at, updated_at
	SortDesc  bool
}

// LeadService orchestrates the access gate and the tiered store.
type LeadService interface {
	SubmitLead(ctx context.Context, token string, lead *domain.Lead, sourceAddr string) (domain.StorageOutcome, error)
	ListLeads(ctx context.Context, token string, opts ListOptions, sourceAddr string) ([]domain.Lead, error)
	GetLead(ctx context.Context, token, id, sourceAddr string) (*domain.Lead, error)
	UpdateLead(ctx context.Context, token, id string, patch domain.LeadPatch, sourceAddr string) (*domain.Lead, error)
	DeleteLead(ctx context.Context, token, id, sourceAddr string) error
	ListAccessLog(ctx context.Context, token string, limit int, sourceAddr string) ([]domain.AccessLogEntry, error)
	StorageStatus(ctx context.Context, token, sourceAddr string) (map[string]any, error)
}
