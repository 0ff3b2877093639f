package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/veridianlabs/leadvault/internal/core/domain"
	"github.com/veridianlabs/leadvault/internal/core/ports"
	"github.com/veridianlabs/leadvault/internal/infrastructure/metrics"
)

// lockStripes bounds the per-lead lock table; leads hash onto stripes.
const lockStripes = 64

// durableTier is the on-disk fallback surface TieredStore depends on.
type durableTier interface {
	Put(lead domain.Lead) error
	Get(id string) (*domain.Lead, error)
	Delete(id string) (bool, error)
	All() ([]domain.Lead, error)
}

// memoryTier is the in-process cache surface TieredStore depends on.
type memoryTier interface {
	Upsert(lead domain.Lead)
	Get(id string) (domain.Lead, bool)
	Delete(id string) bool
	All() []domain.Lead
	Len() int
}

// TieredStore attempts the primary database, falls back to the durable local
// store, and always mirrors into the in-memory cache. A write fails only when
// every tier rejects it. Writes to the same lead ID are serialized through a
// striped lock so concurrent updates cannot interleave tier decisions.
type TieredStore struct {
	primary ports.LeadRepository // nil when the primary tier is disabled
	durable durableTier
	cache   memoryTier
	policy  RetryPolicy
	logger  *slog.Logger

	locks [lockStripes]sync.Mutex

	mu        sync.Mutex
	primaryUp bool
}

// NewTieredStore wires the three tiers together. primary may be nil, durable
// and cache may be nil only in tests.
func NewTieredStore(primary ports.LeadRepository, durable *FileStore, cache *LeadCache, policy RetryPolicy, logger *slog.Logger) *TieredStore {
	t := &TieredStore{
		policy: policy,
		logger: logger,
	}
	if primary != nil {
		t.primary = primary
	}
	if durable != nil {
		t.durable = durable
	}
	if cache != nil {
		t.cache = cache
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

func (t *TieredStore) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id)) // #nosec G104
	return &t.locks[h.Sum32()%lockStripes]
}

// Save persists a lead through the tier cascade. Once a save has begun it is
// not cancellable by the caller: a partial write to a durable tier must be
// allowed to complete.
func (t *TieredStore) Save(ctx context.Context, lead *domain.Lead) (domain.StorageOutcome, error) {
	mu := t.lockFor(lead.ID)
	mu.Lock()
	defer mu.Unlock()

	outcome := t.persist(context.WithoutCancel(ctx), lead)
	if !outcome.Persisted() {
		return outcome, fmt.Errorf("%w: primary=%v durable=%v", domain.ErrAllTiersFailed, outcome.PrimaryErr, outcome.DurableErr)
	}
	metrics.LeadSaves.WithLabelValues(string(outcome.Tier)).Inc()
	return outcome, nil
}

// persist runs the tier cascade for one lead. Callers hold the lead's lock.
func (t *TieredStore) persist(ctx context.Context, lead *domain.Lead) domain.StorageOutcome {
	var outcome domain.StorageOutcome

	if t.primary != nil {
		lead.Tier = domain.TierPrimary
		err := t.retryPrimary(ctx, func(attemptCtx context.Context) error {
			return t.primary.UpsertLead(attemptCtx, lead)
		})
		if err == nil {
			outcome.Primary = true
			// The primary copy is now authoritative; drop any stale fallback
			// copy so a later outage cannot serve superseded data.
			if t.durable != nil {
				if _, derr := t.durable.Delete(lead.ID); derr != nil {
					t.logger.Warn("failed to clear durable copy after primary write", "lead_id", lead.ID, "error", derr)
				}
			}
		} else {
			outcome.PrimaryErr = err
			metrics.TierFallbacks.WithLabelValues(string(domain.TierPrimary), "save").Inc()
			t.logger.Warn("primary tier rejected write, falling back", "lead_id", lead.ID, "error", err)
		}
	}

	if !outcome.Primary && t.durable != nil {
		lead.Tier = domain.TierDurable
		if err := t.durable.Put(*lead); err != nil {
			outcome.DurableErr = err
			metrics.TierFallbacks.WithLabelValues(string(domain.TierDurable), "save").Inc()
			t.logger.Error("durable tier rejected write", "lead_id", lead.ID, "error", err)
		} else {
			outcome.Durable = true
		}
	}

	if !outcome.Primary && !outcome.Durable {
		lead.Tier = domain.TierMemory
	}
	if t.cache != nil {
		t.cache.Upsert(*lead)
		outcome.Memory = true
	}

	outcome.Tier = lead.Tier
	return outcome
}

// retryPrimary runs fn with bounded retry: up to policy.Attempts attempts,
// each under its own timeout, with the policy's backoff between them.
func (t *TieredStore) retryPrimary(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= t.policy.Attempts; attempt++ {
		if delay := t.policy.delayBefore(attempt); delay > 0 {
			time.Sleep(delay)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, t.policy.AttemptTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// Find reads from the primary tier, transparently falling back to the durable
// store on connectivity failure, then merges cache-only records de-duplicated
// by ID. Primary read failures are absorbed, never surfaced.
func (t *TieredStore) Find(ctx context.Context, query domain.LeadQuery) ([]domain.Lead, error) {
	var results []domain.Lead
	primaryOK := false
	var durableErr error

	if t.primary != nil {
		leads, err := t.primary.ListLeads(ctx, query)
		if err == nil {
			results = leads
			primaryOK = true
		} else {
			metrics.TierFallbacks.WithLabelValues(string(domain.TierPrimary), "find").Inc()
			t.logger.Warn("primary tier read failed, falling back", "error", err)
		}
	}

	if !primaryOK && t.durable != nil {
		all, err := t.durable.All()
		if err != nil {
			durableErr = err
			metrics.TierFallbacks.WithLabelValues(string(domain.TierDurable), "find").Inc()
			t.logger.Error("durable tier read failed", "error", err)
		} else {
			for _, lead := range all {
				if query.Matches(lead) {
					results = append(results, lead)
				}
			}
		}
	}

	if t.cache != nil {
		seen := make(map[string]bool, len(results))
		for _, lead := range results {
			seen[lead.ID] = true
		}
		for _, lead := range t.cache.All() {
			if !seen[lead.ID] && query.Matches(lead) {
				results = append(results, lead)
			}
		}
	} else if !primaryOK && durableErr != nil {
		return nil, durableErr
	}

	return results, nil
}

// Update applies a patch to an existing lead and persists it through the
// cascade. The lead's CreatedAt and ID are never touched.
func (t *TieredStore) Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	lead, err := t.get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(lead, time.Now().UTC())

	outcome := t.persist(context.WithoutCancel(ctx), lead)
	if !outcome.Persisted() {
		return nil, fmt.Errorf("%w: primary=%v durable=%v", domain.ErrAllTiersFailed, outcome.PrimaryErr, outcome.DurableErr)
	}
	return lead, nil
}

// get locates a lead in tier order. Callers hold the lead's lock.
func (t *TieredStore) get(ctx context.Context, id string) (*domain.Lead, error) {
	if t.primary != nil {
		lead, err := t.primary.GetLead(ctx, id)
		if err == nil {
			return lead, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			// Fall through: the record may live in a fallback tier only.
		} else {
			metrics.TierFallbacks.WithLabelValues(string(domain.TierPrimary), "get").Inc()
			t.logger.Warn("primary tier read failed, falling back", "lead_id", id, "error", err)
		}
	}
	if t.durable != nil {
		lead, err := t.durable.Get(id)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			t.logger.Error("durable tier read failed", "lead_id", id, "error", err)
		}
	}
	if t.cache != nil {
		if lead, ok := t.cache.Get(id); ok {
			return &lead, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Get returns a single lead by ID through the tier cascade.
func (t *TieredStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return t.get(ctx, id)
}

// Delete removes a lead from every tier it exists in. It reports whether any
// tier held the record. Unlike Save, Delete has no fallback: while the
// primary is unreachable a copy may survive there and resurface after
// recovery, so the failure is surfaced and the caller retries.
func (t *TieredStore) Delete(ctx context.Context, id string) (bool, error) {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existed := false
	if t.primary != nil {
		err := t.primary.DeleteLead(ctx, id)
		switch {
		case err == nil:
			existed = true
		case errors.Is(err, domain.ErrNotFound):
		default:
			metrics.TierFallbacks.WithLabelValues(string(domain.TierPrimary), "delete").Inc()
			t.logger.Warn("primary tier delete failed", "lead_id", id, "error", err)
			return false, fmt.Errorf("primary tier delete failed: %w", err)
		}
	}
	if t.durable != nil {
		ok, err := t.durable.Delete(id)
		if err != nil {
			t.logger.Error("durable tier delete failed", "lead_id", id, "error", err)
		}
		existed = existed || ok
	}
	if t.cache != nil {
		existed = t.cache.Delete(id) || existed
	}
	return existed, nil
}

// Reconcile replays durable- and cache-only records into the primary
// database. It is idempotent: a record already present in the primary is
// re-marked, not re-inserted.
func (t *TieredStore) Reconcile(ctx context.Context) (int, error) {
	if t.primary == nil {
		return 0, nil
	}

	candidates := t.fallbackRecords()
	replayed := 0
	for _, lead := range candidates {
		mu := t.lockFor(lead.ID)
		mu.Lock()
		err := t.reconcileOne(ctx, lead)
		mu.Unlock()
		if err != nil {
			t.updatePendingGauge(ctx)
			return replayed, err
		}
		replayed++
	}
	t.updatePendingGauge(ctx)
	return replayed, nil
}

func (t *TieredStore) reconcileOne(ctx context.Context, lead domain.Lead) error {
	exists, err := t.primary.LeadExists(ctx, lead.ID)
	if err != nil {
		return fmt.Errorf("reconcile: existence check failed for %s: %w", lead.ID, err)
	}
	if !exists {
		lead.Tier = domain.TierPrimary
		if err := t.primary.CreateLead(ctx, &lead); err != nil {
			return fmt.Errorf("reconcile: replay failed for %s: %w", lead.ID, err)
		}
		metrics.ReconciledLeads.Inc()
		t.logger.Info("reconciled lead into primary", "lead_id", lead.ID)
	} else {
		lead.Tier = domain.TierPrimary
	}
	if t.durable != nil {
		if _, err := t.durable.Delete(lead.ID); err != nil {
			t.logger.Warn("failed to clear durable copy after reconcile", "lead_id", lead.ID, "error", err)
		}
	}
	if t.cache != nil {
		t.cache.Upsert(lead)
	}
	return nil
}

// fallbackRecords lists records whose authoritative copy is not the primary
// tier, de-duplicated by ID.
func (t *TieredStore) fallbackRecords() []domain.Lead {
	seen := make(map[string]bool)
	var out []domain.Lead
	if t.durable != nil {
		if all, err := t.durable.All(); err == nil {
			for _, lead := range all {
				if !seen[lead.ID] {
					seen[lead.ID] = true
					out = append(out, lead)
				}
			}
		} else {
			t.logger.Error("durable tier read failed during reconcile scan", "error", err)
		}
	}
	if t.cache != nil {
		for _, lead := range t.cache.All() {
			if lead.Tier != domain.TierPrimary && !seen[lead.ID] {
				seen[lead.ID] = true
				out = append(out, lead)
			}
		}
	}
	return out
}

// PendingReconciliation counts records awaiting replay into the primary tier.
func (t *TieredStore) PendingReconciliation(_ context.Context) (int, error) {
	return len(t.fallbackRecords()), nil
}

func (t *TieredStore) updatePendingGauge(ctx context.Context) {
	if n, err := t.PendingReconciliation(ctx); err == nil {
		metrics.PendingReconciliation.Set(float64(n))
	}
}

// Health reports per-tier reachability.
func (t *TieredStore) Health(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if t.primary != nil {
		checks["primary"] = t.primary.Ping(ctx)
	} else {
		checks["primary"] = errors.New("disabled")
	}
	if t.durable != nil {
		_, err := t.durable.All()
		checks["durable"] = err
	}
	if t.cache != nil {
		checks["cache"] = nil
	}
	return checks
}

// MonitorPrimary pings the primary tier on the given interval and triggers a
// reconciliation pass on every down-to-up transition. Reconciliation is
// recovery-triggered, not scheduled.
func (t *TieredStore) MonitorPrimary(ctx context.Context, interval time.Duration) {
	if t.primary == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, t.policy.AttemptTimeout)
			err := t.primary.Ping(pingCtx)
			cancel()

			up := err == nil
			t.mu.Lock()
			wasUp := t.primaryUp
			t.primaryUp = up
			t.mu.Unlock()

			if up {
				metrics.PrimaryUp.Set(1)
			} else {
				metrics.PrimaryUp.Set(0)
			}

			if up && !wasUp {
				t.logger.Info("primary tier reachable, starting reconciliation")
				n, rerr := t.Reconcile(ctx)
				if rerr != nil {
					t.logger.Error("reconciliation pass failed", "replayed", n, "error", rerr)
				} else if n > 0 {
					t.logger.Info("reconciliation pass complete", "replayed", n)
				}
			}
		}
	}
}
