// Package domain contains the core business entities for LeadVault.
package domain

import (
	"time"
)

// NetworkType classifies the infrastructure a prospect runs on.
type NetworkType string

const (
	// NetworkCloud represents public-cloud deployments.
	NetworkCloud NetworkType = "cloud"
	// NetworkDatacenter represents on-premise datacenter deployments.
	NetworkDatacenter NetworkType = "datacenter"
	// NetworkHybrid represents mixed cloud/on-premise deployments.
	NetworkHybrid NetworkType = "hybrid"
	// NetworkEdge represents edge or branch-office deployments.
	NetworkEdge NetworkType = "edge"
	// NetworkOther covers everything the form cannot classify.
	NetworkOther NetworkType = "other"
)

// LeadStatus tracks a lead through the sales funnel. Any status is reachable
// from any other status; transitions only bump UpdatedAt.
type LeadStatus string

const (
	StatusNew       LeadStatus = "New"
	StatusContacted LeadStatus = "Contacted"
	StatusQualified LeadStatus = "Qualified"
	StatusConverted LeadStatus = "Converted"
	StatusRejected  LeadStatus = "Rejected"
	StatusClosed    LeadStatus = "Closed"
)

// StorageTier identifies which backend currently holds the authoritative
// copy of a lead.
type StorageTier string

const (
	// TierPrimary is the Postgres database.
	TierPrimary StorageTier = "primary"
	// TierDurable is the on-disk fallback collection.
	TierDurable StorageTier = "durable-local"
	// TierMemory is the in-process cache, lost on restart.
	TierMemory StorageTier = "memory"
)

// Lead represents a prospective customer's submitted contact information.
// The ID is immutable once assigned.
type Lead struct {
	ID        string      `json:"id"`
	Company   string      `json:"company"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Network   NetworkType `json:"network"`
	Status    LeadStatus  `json:"status"`
	Tier      StorageTier `json:"tier"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LeadPatch carries the mutable fields of an update; nil fields are left
// untouched.
type LeadPatch struct {
	Company *string      `json:"company,omitempty"`
	Name    *string      `json:"name,omitempty"`
	Email   *string      `json:"email,omitempty"`
	Phone   *string      `json:"phone,omitempty"`
	Network *NetworkType `json:"network,omitempty"`
	Status  *LeadStatus  `json:"status,omitempty"`
}

// Apply copies the non-nil patch fields onto the lead and bumps UpdatedAt.
func (p LeadPatch) Apply(lead *Lead, now time.Time) {
	if p.Company != nil {
		lead.Company = *p.Company
	}
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Email != nil {
		lead.Email = *p.Email
	}
	if p.Phone != nil {
		lead.Phone = *p.Phone
	}
	if p.Network != nil {
		lead.Network = *p.Network
	}
	if p.Status != nil {
		lead.Status = *p.Status
	}
	lead.UpdatedAt = now
}

// LeadQuery narrows Find results. Zero values match everything.
type LeadQuery struct {
	ID      string     `json:"id,omitempty"`
	Company string     `json:"company,omitempty"`
	Status  LeadStatus `json:"status,omitempty"`
}

// Matches reports whether the lead satisfies every non-zero query field.
func (q LeadQuery) Matches(lead Lead) bool {
	if q.ID != "" && lead.ID != q.ID {
		return false
	}
	if q.Company != "" && lead.Company != q.Company {
		return false
	}
	if q.Status != "" && lead.Status != q.Status {
		return false
	}
	return true
}

// StorageOutcome records which tiers accepted a write so callers can
// distinguish a fully durable save from a degraded one.
type StorageOutcome struct {
	Primary bool `json:"primary"`
	Durable bool `json:"durable"`
	Memory  bool `json:"memory"`

	// Tier is the highest tier that accepted the write.
	Tier StorageTier `json:"tier"`

	// PrimaryErr and DurableErr hold the last attempt errors for the tiers
	// that failed, for logging. They are never surfaced to submitters.
	PrimaryErr error `json:"-"`
	DurableErr error `json:"-"`
}

// Persisted reports whether at least one tier accepted the write.
func (o StorageOutcome) Persisted() bool {
	return o.Primary || o.Durable || o.Memory
}

// Degraded reports whether the write landed somewhere weaker than primary.
func (o StorageOutcome) Degraded() bool {
	return o.Persisted() && !o.Primary
}
