package domain

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"      // Submit-only access
	RoleManager   Role = "manager"   // Lead list/update access
	RoleAdmin     Role = "admin"     // Full CRUD plus credential management
	RoleDeveloper Role = "developer" // Read-only diagnostic access
)

// ValidRole reports whether r belongs to the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin, RoleDeveloper:
		return true
	}
	return false
}

type APIKey struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`      // Human-readable label, e.g. "dashboard-ops"
	KeyHash   string    `json:"-"`          // SHA-256 hash of the key (never store raw)
	KeyPrefix string    `json:"key_prefix"` // First 8 chars for identification
	Role      Role      `json:"role"`
	RateLimit int       `json:"rate_limit"` // Requests allowed per window
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Outcome is the result of one gate evaluation.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// DenyReason is the closed set of reasons a gate evaluation can deny.
type DenyReason string

const (
	ReasonUnknownCredential  DenyReason = "unknown credential"
	ReasonDisabledCredential DenyReason = "disabled credential"
	ReasonRoleMismatch       DenyReason = "role mismatch"
	ReasonRateLimited        DenyReason = "rate limit exceeded"
)

// AnonymousKeyID is recorded in access log entries when no credential was
// presented.
const AnonymousKeyID = "anonymous"

// Decision is what the access gate returns for every evaluation.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	KeyID     string     `json:"key_id"`
	Role      Role       `json:"role,omitempty"`
	Reason    DenyReason `json:"reason,omitempty"`
	Remaining int        `json:"remaining"` // Rate budget left in the current window
}

// AccessLogEntry is the immutable record of one gate decision. Entries are
// appended exactly once and never mutated.
type AccessLogEntry struct {
	KeyID      string     `json:"key_id"`
	Operation  string     `json:"operation"`
	Outcome    Outcome    `json:"outcome"`
	Reason     DenyReason `json:"reason,omitempty"`
	SourceAddr string     `json:"source_addr,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
