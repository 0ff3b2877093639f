package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions tracks access gate outcomes by reason
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadvault_gate_decisions_total",
		Help: "Total number of access gate evaluations",
	}, []string{"outcome", "reason"})

	// LeadSaves tracks lead writes by the tier that accepted them
	LeadSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadvault_lead_saves_total",
		Help: "Total number of lead saves by accepting tier",
	}, []string{"tier"})

	// TierFallbacks counts reads and writes that fell through a tier
	TierFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadvault_tier_fallbacks_total",
		Help: "Total number of tier fallback events",
	}, []string{"from", "operation"})

	// ReconciledLeads counts records replayed into the primary database
	ReconciledLeads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadvault_reconciled_leads_total",
		Help: "Total number of leads reconciled into the primary tier",
	})

	// PendingReconciliation tracks records not yet present in the primary tier
	PendingReconciliation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadvault_pending_reconciliation",
		Help: "Number of leads awaiting reconciliation into the primary tier",
	})

	// PrimaryUp indicates current primary database reachability
	PrimaryUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadvault_primary_up",
		Help: "Binary indicator of primary database reachability (1 = up, 0 = down)",
	})

	// AuditWriteFailures counts access log entries that could not be appended
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadvault_audit_write_failures_total",
		Help: "Total number of failed audit sink appends",
	})
)
