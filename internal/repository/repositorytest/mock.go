// Package repositorytest provides a testify mock of repository.Repository.
package repositorytest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/repository"
)

var _ repository.Repository = (*MockRepository)(nil)

// MockRepository is a mock implementation of repository.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertAlert(ctx context.Context, payload *models.AlertPayload) (*models.Alert, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockRepository) HasRecentAlert(ctx context.Context, title, source string, since time.Time) (bool, error) {
	args := m.Called(ctx, title, source, since)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockRepository) GetAlertsByIDs(ctx context.Context, ids []string) ([]*models.Alert, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *MockRepository) DeleteAlertsBySource(ctx context.Context, source string) (int64, error) {
	args := m.Called(ctx, source)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) SourceSeverityCounts(ctx context.Context, sourcePrefix string) ([]models.SourceSeverityCount, error) {
	args := m.Called(ctx, sourcePrefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SourceSeverityCount), args.Error(1)
}

func (m *MockRepository) CountAlertsWithSourceIP(ctx context.Context, ip string, since time.Time, excludeID string) (int, error) {
	args := m.Called(ctx, ip, since, excludeID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListRecentAlerts(ctx context.Context, since time.Time, excludeID string, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, since, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *MockRepository) CountAlertsFromSource(ctx context.Context, source string, since time.Time, excludeID string) (int, error) {
	args := m.Called(ctx, source, since, excludeID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) MergeRawData(ctx context.Context, id string, patch map[string]any) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) Close() {
	m.Called()
}
