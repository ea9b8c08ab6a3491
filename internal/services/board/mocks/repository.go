package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/DelayWatch/internal/broker/messages"
	"github.com/BearBump/DelayWatch/internal/models"
)

// MockRepository is a testify mock of board.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveSnapshot(ctx context.Context, snap *messages.AlertsScanned) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockRepository) LatestSnapshot(ctx context.Context) (*messages.AlertsScanned, bool, error) {
	args := m.Called(ctx)
	var snap *messages.AlertsScanned
	if v := args.Get(0); v != nil {
		snap = v.(*messages.AlertsScanned)
	}
	return snap, args.Bool(1), args.Error(2)
}

func (m *MockRepository) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	args := m.Called(ctx, keep)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) SaveResolution(ctx context.Context, r models.AlertResolution) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) ListResolutions(ctx context.Context, trackingNumbers []string) ([]models.AlertResolution, error) {
	args := m.Called(ctx, trackingNumbers)
	var out []models.AlertResolution
	if v := args.Get(0); v != nil {
		out = v.([]models.AlertResolution)
	}
	return out, args.Error(1)
}
