package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/veridianlabs/leadvault/internal/core/domain"
	"github.com/veridianlabs/leadvault/internal/core/ports"
	"github.com/veridianlabs/leadvault/internal/ratelimit"
)

// fakeStore is an in-memory LeadStore. Saves succeed on the primary tier
// unless degraded is set, in which case they land on the durable tier.
type fakeStore struct {
	mu       sync.Mutex
	leads    map[string]domain.Lead
	degraded bool
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[string]domain.Lead)}
}

func (f *fakeStore) Save(_ context.Context, lead *domain.Lead) (domain.StorageOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.degraded {
		lead.Tier = domain.TierDurable
		f.leads[lead.ID] = *lead
		return domain.StorageOutcome{Durable: true, Memory: true, Tier: domain.TierDurable}, nil
	}
	lead.Tier = domain.TierPrimary
	f.leads[lead.ID] = *lead
	return domain.StorageOutcome{Primary: true, Memory: true, Tier: domain.TierPrimary}, nil
}

func (f *fakeStore) Find(_ context.Context, query domain.LeadQuery) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Lead
	for _, lead := range f.leads {
		if query.Matches(lead) {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &lead, nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&lead, time.Now().UTC())
	f.leads[id] = lead
	return &lead, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leads[id]; !ok {
		return false, nil
	}
	delete(f.leads, id)
	return true, nil
}

func (f *fakeStore) Reconcile(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) PendingReconciliation(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, lead := range f.leads {
		if lead.Tier != domain.TierPrimary {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Health(context.Context) map[string]error {
	return map[string]error{"primary": nil, "durable": nil, "cache": nil}
}

type serviceFixture struct {
	svc   ports.LeadService
	creds *fakeCreds
	store *fakeStore
	sink  *memorySink
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	creds := newFakeCreds()
	creds.add("lv_user", roleKey("key-user", domain.RoleUser))
	creds.add("lv_manager", roleKey("key-manager", domain.RoleManager))
	creds.add("lv_admin", roleKey("key-admin", domain.RoleAdmin))
	creds.add("lv_dev", roleKey("key-dev", domain.RoleDeveloper))

	sink := &memorySink{}
	store := newFakeStore()
	gate := NewAccessGate(creds, ratelimit.NewMemoryLimiter(time.Minute), sink, 60, nil)
	return &serviceFixture{
		svc:   NewLeadService(gate, store, sink, nil),
		creds: creds,
		store: store,
		sink:  sink,
	}
}

func roleKey(id string, role domain.Role) domain.APIKey {
	return domain.APIKey{
		ID:        id,
		Owner:     string(role) + "-owner",
		Role:      role,
		RateLimit: 100,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func submittedLead() *domain.Lead {
	return &domain.Lead{
		Company: "Acme Corp",
		Name:    "Jane Doe",
		Email:   "jane@acme.test",
		Phone:   "+1-555-0100",
		Network: domain.NetworkCloud,
	}
}

func TestSubmitLeadAnonymous(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	lead := submittedLead()
	outcome, err := fx.svc.SubmitLead(ctx, "", lead, "203.0.113.9")
	if err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}
	if !outcome.Primary {
		t.Errorf("Expected primary-tier save")
	}
	if lead.ID == "" {
		t.Errorf("Expected generated ID")
	}
	if lead.Status != domain.StatusNew {
		t.Errorf("Expected default status New, got %s", lead.Status)
	}
	if lead.CreatedAt.IsZero() || !lead.CreatedAt.Equal(lead.UpdatedAt) {
		t.Errorf("Expected CreatedAt == UpdatedAt on submit")
	}

	// Anonymous submissions still produce exactly one access log entry.
	if len(fx.sink.entries) != 1 {
		t.Fatalf("Expected 1 access log entry, got %d", len(fx.sink.entries))
	}
	e := fx.sink.entries[0]
	if e.KeyID != domain.AnonymousKeyID || e.Outcome != domain.OutcomeAllowed || e.Operation != OpSubmitLead {
		t.Errorf("Unexpected entry: %+v", e)
	}
}

func TestSubmitLeadValidatesBeforeStorage(t *testing.T) {
	fx := newServiceFixture(t)

	lead := submittedLead()
	lead.Email = "not-an-address"
	_, err := fx.svc.SubmitLead(context.Background(), "", lead, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if fx.store.saves != 0 {
		t.Errorf("Validation failure must not reach storage, got %d saves", fx.store.saves)
	}
}

func TestSubmitLeadRejectsBadNetwork(t *testing.T) {
	fx := newServiceFixture(t)

	lead := submittedLead()
	lead.Network = "mainframe"
	if _, err := fx.svc.SubmitLead(context.Background(), "", lead, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestSubmitLeadWithCredential(t *testing.T) {
	fx := newServiceFixture(t)

	if _, err := fx.svc.SubmitLead(context.Background(), "lv_user", submittedLead(), ""); err != nil {
		t.Errorf("User credential should be able to submit: %v", err)
	}
	if _, err := fx.svc.SubmitLead(context.Background(), "lv_bogus", submittedLead(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Presented but unknown credential must be denied, got %v", err)
	}
}

func TestSubmitLeadDegradedStillSucceeds(t *testing.T) {
	fx := newServiceFixture(t)
	fx.store.degraded = true

	outcome, err := fx.svc.SubmitLead(context.Background(), "", submittedLead(), "")
	if err != nil {
		t.Fatalf("Degraded save must still succeed: %v", err)
	}
	if outcome.Tier != domain.TierDurable {
		t.Errorf("Expected tier durable-local, got %s", outcome.Tier)
	}
}

func TestListLeadsRoleEnforcement(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.ListLeads(ctx, "lv_user", ports.ListOptions{}, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("User role must not list leads, got %v", err)
	}
	if _, err := fx.svc.ListLeads(ctx, "lv_manager", ports.ListOptions{}, ""); err != nil {
		t.Errorf("Manager role should list leads: %v", err)
	}
	if _, err := fx.svc.ListLeads(ctx, "lv_admin", ports.ListOptions{}, ""); err != nil {
		t.Errorf("Admin role should list leads: %v", err)
	}
}

func TestListLeadsFilterSearchSort(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	seed := []struct {
		company string
		email   string
		status  domain.LeadStatus
	}{
		{"Zenith Systems", "ops@zenith.test", domain.StatusNew},
		{"Acme Corp", "jane@acme.test", domain.StatusQualified},
		{"Borealis Networks", "noc@borealis.test", domain.StatusNew},
	}
	for _, s := range seed {
		lead := submittedLead()
		lead.Company = s.company
		lead.Email = s.email
		lead.Status = s.status
		if _, err := fx.svc.SubmitLead(ctx, "", lead, ""); err != nil {
			t.Fatalf("SubmitLead failed: %v", err)
		}
	}

	byStatus, err := fx.svc.ListLeads(ctx, "lv_manager", ports.ListOptions{Status: domain.StatusNew}, "")
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("Expected 2 New leads, got %d", len(byStatus))
	}

	bySearch, err := fx.svc.ListLeads(ctx, "lv_manager", ports.ListOptions{Search: "ACME"}, "")
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].Company != "Acme Corp" {
		t.Errorf("Case-insensitive search failed: %+v", bySearch)
	}

	sorted, err := fx.svc.ListLeads(ctx, "lv_manager", ports.ListOptions{SortBy: "company", SortDesc: true}, "")
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(sorted) != 3 || sorted[0].Company != "Zenith Systems" {
		t.Errorf("Descending company sort failed: %+v", sorted)
	}

	if _, err := fx.svc.ListLeads(ctx, "lv_manager", ports.ListOptions{SortBy: "phone"}, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Unknown sort field must fail validation, got %v", err)
	}
}

func TestGetLead(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	lead := submittedLead()
	if _, err := fx.svc.SubmitLead(ctx, "", lead, ""); err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}

	got, err := fx.svc.GetLead(ctx, "lv_manager", lead.ID, "")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if got.Email != "jane@acme.test" {
		t.Errorf("Unexpected lead: %+v", got)
	}

	if _, err := fx.svc.GetLead(ctx, "lv_manager", "missing", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := fx.svc.GetLead(ctx, "lv_user", lead.ID, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("User role must not read leads, got %v", err)
	}
}

func TestUpdateLead(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	lead := submittedLead()
	if _, err := fx.svc.SubmitLead(ctx, "", lead, ""); err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}

	status := domain.StatusContacted
	updated, err := fx.svc.UpdateLead(ctx, "lv_manager", lead.ID, domain.LeadPatch{Status: &status}, "")
	if err != nil {
		t.Fatalf("UpdateLead failed: %v", err)
	}
	if updated.Status != domain.StatusContacted {
		t.Errorf("Expected status Contacted, got %s", updated.Status)
	}

	bad := "not-an-address"
	if _, err := fx.svc.UpdateLead(ctx, "lv_manager", lead.ID, domain.LeadPatch{Email: &bad}, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation for bad patch email, got %v", err)
	}
}

func TestDeleteLeadAdminOnly(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	lead := submittedLead()
	if _, err := fx.svc.SubmitLead(ctx, "", lead, ""); err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}
	before := len(fx.sink.entries)

	// Manager holds wide access but not delete.
	err := fx.svc.DeleteLead(ctx, "lv_manager", lead.ID, "198.51.100.7")
	var denied *domain.AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Expected AccessDeniedError, got %v", err)
	}
	if denied.Decision.Reason != domain.ReasonRoleMismatch {
		t.Errorf("Expected role mismatch, got %s", denied.Decision.Reason)
	}
	if len(fx.sink.entries) != before+1 {
		t.Fatalf("Expected exactly 1 new access log entry, got %d", len(fx.sink.entries)-before)
	}
	e := fx.sink.entries[len(fx.sink.entries)-1]
	if e.Outcome != domain.OutcomeDenied || e.Reason != domain.ReasonRoleMismatch || e.KeyID != "key-manager" {
		t.Errorf("Unexpected entry: %+v", e)
	}

	// The record is untouched; the admin can still remove it.
	if _, err := fx.svc.GetLead(ctx, "lv_admin", lead.ID, ""); err != nil {
		t.Fatalf("Lead should survive a denied delete: %v", err)
	}
	if err := fx.svc.DeleteLead(ctx, "lv_admin", lead.ID, ""); err != nil {
		t.Fatalf("Admin delete failed: %v", err)
	}
	if err := fx.svc.DeleteLead(ctx, "lv_admin", lead.ID, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestListAccessLog(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SubmitLead(ctx, "", submittedLead(), ""); err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}

	entries, err := fx.svc.ListAccessLog(ctx, "lv_dev", 10, "")
	if err != nil {
		t.Fatalf("ListAccessLog failed: %v", err)
	}
	// The submit entry plus the allowed read itself.
	if len(entries) < 1 {
		t.Errorf("Expected at least 1 entry, got %d", len(entries))
	}

	if _, err := fx.svc.ListAccessLog(ctx, "lv_manager", 10, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Manager role must not read the access log, got %v", err)
	}
}

func TestStorageStatus(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	status, err := fx.svc.StorageStatus(ctx, "lv_admin", "")
	if err != nil {
		t.Fatalf("StorageStatus failed: %v", err)
	}
	tiers, ok := status["tiers"].(map[string]string)
	if !ok {
		t.Fatalf("Expected tiers map, got %T", status["tiers"])
	}
	if tiers["primary"] != "OK" {
		t.Errorf("Expected primary OK, got %s", tiers["primary"])
	}
	if status["pending_reconciliation"] != 0 {
		t.Errorf("Expected 0 pending, got %v", status["pending_reconciliation"])
	}

	if _, err := fx.svc.StorageStatus(ctx, "lv_user", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("User role must not read storage status, got %v", err)
	}
}

func TestSortLeadsFields(t *testing.T) {
	leads := []domain.Lead{
		{ID: "b", Company: "beta", CreatedAt: time.Now().Add(time.Hour)},
		{ID: "a", Company: "Alpha", CreatedAt: time.Now()},
	}

	if err := sortLeads(leads, "id", false); err != nil {
		t.Fatalf("sortLeads failed: %v", err)
	}
	if leads[0].ID != "a" {
		t.Errorf("Expected id sort ascending, got %s first", leads[0].ID)
	}

	if err := sortLeads(leads, "company", false); err != nil {
		t.Fatalf("sortLeads failed: %v", err)
	}
	if leads[0].Company != "Alpha" {
		t.Errorf("Company sort should be case-insensitive, got %s first", leads[0].Company)
	}

	if err := sortLeads(leads, "", false); err != nil {
		t.Fatalf("sortLeads failed: %v", err)
	}
	if leads[0].ID != "a" {
		t.Errorf("Default sort is created_at ascending, got %s first", leads[0].ID)
	}
}
