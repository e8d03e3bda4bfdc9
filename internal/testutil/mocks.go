// Package testutil provides shared test doubles for the license store.
package testutil

import (
	"context"
	"time"

	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockRepo is a testify mock of ports.LicenseRepository.
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetIssued(ctx context.Context, key string) (*domain.IssuedKey, error) {
	args := m.Called(key)
	rec, _ := args.Get(0).(*domain.IssuedKey)
	return rec, args.Error(1)
}

func (m *MockRepo) UpsertIssuedOnVerify(ctx context.Context, key, hwid string, seen time.Time) error {
	args := m.Called(key, hwid, seen)
	return args.Error(0)
}

func (m *MockRepo) CreateIssued(ctx context.Context, rec *domain.IssuedKey) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockRepo) FindBan(ctx context.Context, key, hwid string) (*domain.Ban, error) {
	args := m.Called(key, hwid)
	ban, _ := args.Get(0).(*domain.Ban)
	return ban, args.Error(1)
}

func (m *MockRepo) FindDeactivation(ctx context.Context, key string) (*domain.Deactivation, error) {
	args := m.Called(key)
	d, _ := args.Get(0).(*domain.Deactivation)
	return d, args.Error(1)
}

func (m *MockRepo) Ban(ctx context.Context, ban *domain.Ban) error {
	args := m.Called(ban)
	return args.Error(0)
}

func (m *MockRepo) Unban(ctx context.Context, key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) Deactivate(ctx context.Context, d *domain.Deactivation) error {
	args := m.Called(d)
	return args.Error(0)
}

func (m *MockRepo) Reactivate(ctx context.Context, key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) Delete(ctx context.Context, key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) ListAll(ctx context.Context) (*domain.Snapshot, error) {
	args := m.Called()
	snap, _ := args.Get(0).(*domain.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
