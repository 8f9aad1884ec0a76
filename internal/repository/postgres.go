package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/telhawk-systems/socdetect/common/database"
	"github.com/telhawk-systems/socdetect/internal/models"
)

const alertColumns = `id::text, title, description, source, severity, status, raw_data, resolution_method, created_at`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// InsertAlert stores a new alert and returns it with its id and created_at
func (r *PostgresRepository) InsertAlert(ctx context.Context, payload *models.AlertPayload) (*models.Alert, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate alert id: %w", err)
	}

	rawData := payload.RawData
	if rawData == nil {
		rawData = map[string]any{}
	}
	rawJSON, err := json.Marshal(rawData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw_data: %w", err)
	}

	status := payload.Status
	if status == "" {
		status = models.StatusPending
	}

	query := `
		INSERT INTO alerts
		(id, title, description, source, severity, status, raw_data, resolution_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	alert := &models.Alert{
		ID:               id.String(),
		Title:            payload.Title,
		Description:      payload.Description,
		Source:           payload.Source,
		Severity:         payload.Severity,
		Status:           status,
		RawData:          rawData,
		ResolutionMethod: payload.ResolutionMethod,
	}

	err = r.pool.QueryRow(ctx, query,
		id,
		payload.Title,
		payload.Description,
		payload.Source,
		payload.Severity,
		status,
		rawJSON,
		payload.ResolutionMethod,
	).Scan(&alert.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}

	return alert, nil
}

// HasRecentAlert reports whether an alert with this exact title and source was
// created at or after since
func (r *PostgresRepository) HasRecentAlert(ctx context.Context, title, source string, since time.Time) (bool, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE title = $1 AND source = $2 AND created_at >= $3
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, title, source, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for recent alert: %w", err)
	}
	return exists, nil
}

// GetAlertByID retrieves a single alert
func (r *PostgresRepository) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAlertNotFound
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// GetAlertsByIDs retrieves every alert in ids that exists. Order is by
// created_at.
func (r *PostgresRepository) GetAlertsByIDs(ctx context.Context, ids []string) ([]*models.Alert, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*models.Alert{}, nil
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ANY($1::text[]::uuid[]) ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	return collectAlerts(rows)
}

// DeleteAlertsBySource removes all alerts whose source equals source exactly
func (r *PostgresRepository) DeleteAlertsBySource(ctx context.Context, source string) (int64, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SourceSeverityCounts groups alerts whose source starts with sourcePrefix by
// source and severity
func (r *PostgresRepository) SourceSeverityCounts(ctx context.Context, sourcePrefix string) ([]models.SourceSeverityCount, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT source, severity, COUNT(*)
		FROM alerts
		WHERE starts_with(source, $1)
		GROUP BY source, severity
		ORDER BY source, severity
	`

	rows, err := r.pool.Query(ctx, query, sourcePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert stats: %w", err)
	}
	defer rows.Close()

	counts := []models.SourceSeverityCount{}
	for rows.Next() {
		var c models.SourceSeverityCount
		if err := rows.Scan(&c.Source, &c.Severity, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan alert stats: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert stats: %w", err)
	}
	return counts, nil
}

// CountAlertsWithSourceIP counts alerts whose raw_data.source_ip equals ip
func (r *PostgresRepository) CountAlertsWithSourceIP(ctx context.Context, ip string, since time.Time, excludeID string) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*) FROM alerts
		WHERE raw_data->>'source_ip' = $1 AND created_at >= $2 AND id::text <> $3
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, ip, since, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts by source ip: %w", err)
	}
	return n, nil
}

// ListRecentAlerts returns up to limit alerts created at or after since,
// newest first
func (r *PostgresRepository) ListRecentAlerts(ctx context.Context, since time.Time, excludeID string, limit int) ([]*models.Alert, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE created_at >= $1 AND id::text <> $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, since, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent alerts: %w", err)
	}
	return collectAlerts(rows)
}

// CountAlertsFromSource counts alerts with the given source
func (r *PostgresRepository) CountAlertsFromSource(ctx context.Context, source string, since time.Time, excludeID string) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*) FROM alerts
		WHERE source = $1 AND created_at >= $2 AND id::text <> $3
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, source, since, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts by source: %w", err)
	}
	return n, nil
}

// MergeRawData merges patch into raw_data with the JSONB concatenation
// operator
func (r *PostgresRepository) MergeRawData(ctx context.Context, id string, patch map[string]any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrAlertNotFound
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal raw_data patch: %w", err)
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE alerts
		SET raw_data = COALESCE(raw_data, '{}'::jsonb) || $2::jsonb
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, patchJSON)
	if err != nil {
		return fmt.Errorf("failed to merge raw_data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var alert models.Alert
	var rawJSON []byte

	err := row.Scan(
		&alert.ID,
		&alert.Title,
		&alert.Description,
		&alert.Source,
		&alert.Severity,
		&alert.Status,
		&rawJSON,
		&alert.ResolutionMethod,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.RawData = map[string]any{}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &alert.RawData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw_data: %w", err)
		}
	}
	return &alert, nil
}

func collectAlerts(rows pgx.Rows) ([]*models.Alert, error) {
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
