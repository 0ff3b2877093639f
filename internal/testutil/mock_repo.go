package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/veridianlabs/leadvault/internal/core/domain"
)

type MockLeadRepo struct {
	mock.Mock
}

func (m *MockLeadRepo) CreateLead(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(lead)
	return args.Error(0)
}

func (m *MockLeadRepo) UpsertLead(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(lead)
	return args.Error(0)
}

func (m *MockLeadRepo) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	args := m.Called(id)
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepo) ListLeads(ctx context.Context, query domain.LeadQuery) ([]domain.Lead, error) {
	args := m.Called(query)
	return args.Get(0).([]domain.Lead), args.Error(1)
}

func (m *MockLeadRepo) UpdateLead(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(lead)
	return args.Error(0)
}

func (m *MockLeadRepo) DeleteLead(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockLeadRepo) LeadExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

type MockCredentialRepo struct {
	mock.Mock
}

func (m *MockCredentialRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCredentialRepo) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	args := m.Called(keyHash)
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *MockCredentialRepo) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	args := m.Called()
	return args.Get(0).([]domain.APIKey), args.Error(1)
}

func (m *MockCredentialRepo) RevokeAPIKey(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockCredentialRepo) DeleteAPIKey(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}
