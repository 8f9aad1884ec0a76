package repository

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/socdetect/internal/models"
)

var ErrAlertNotFound = errors.New("alert not found")

// Repository is the alert store shared by ingestion and risk scoring.
//
// Every "since" argument is an inclusive lower bound on created_at, and
// every excludeID names the alert being correlated so it is not counted
// against itself.
type Repository interface {
	InsertAlert(ctx context.Context, payload *models.AlertPayload) (*models.Alert, error)
	HasRecentAlert(ctx context.Context, title, source string, since time.Time) (bool, error)
	GetAlertByID(ctx context.Context, id string) (*models.Alert, error)
	GetAlertsByIDs(ctx context.Context, ids []string) ([]*models.Alert, error)
	DeleteAlertsBySource(ctx context.Context, source string) (int64, error)
	SourceSeverityCounts(ctx context.Context, sourcePrefix string) ([]models.SourceSeverityCount, error)

	CountAlertsWithSourceIP(ctx context.Context, ip string, since time.Time, excludeID string) (int, error)
	ListRecentAlerts(ctx context.Context, since time.Time, excludeID string, limit int) ([]*models.Alert, error)
	CountAlertsFromSource(ctx context.Context, source string, since time.Time, excludeID string) (int, error)
	// MergeRawData merges patch into the alert's raw_data, keeping keys
	// that patch does not name.
	MergeRawData(ctx context.Context, id string, patch map[string]any) error

	Ping(ctx context.Context) error
	Close()
}
