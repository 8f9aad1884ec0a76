package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/telhawk-systems/socdetect/internal/models"
)

// MemoryRepository is an in-process Repository for tests, dry runs and the
// CLI when no database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	alerts []*models.Alert
	byID   map[string]*models.Alert
	now    func() time.Time
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithMemoryClock sets the clock that stamps created_at on insert.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		byID: make(map[string]*models.Alert),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put stores an alert as-is, keeping its id and created_at.
func (r *MemoryRepository) Put(alert *models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := cloneAlert(alert)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RawData == nil {
		a.RawData = map[string]any{}
	}
	if existing, ok := r.byID[a.ID]; ok {
		*existing = *a
		return
	}
	r.alerts = append(r.alerts, a)
	r.byID[a.ID] = a
}

// Len returns the number of stored alerts.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *MemoryRepository) Close() {}

func (r *MemoryRepository) InsertAlert(ctx context.Context, payload *models.AlertPayload) (*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	status := payload.Status
	if status == "" {
		status = models.StatusPending
	}
	rawData := maps.Clone(payload.RawData)
	if rawData == nil {
		rawData = map[string]any{}
	}

	alert := &models.Alert{
		ID:               id.String(),
		Title:            payload.Title,
		Description:      payload.Description,
		Source:           payload.Source,
		Severity:         payload.Severity,
		Status:           status,
		RawData:          rawData,
		ResolutionMethod: payload.ResolutionMethod,
		CreatedAt:        r.now(),
	}

	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.byID[alert.ID] = alert
	r.mu.Unlock()

	return cloneAlert(alert), nil
}

func (r *MemoryRepository) HasRecentAlert(ctx context.Context, title, source string, since time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.alerts {
		if a.Title == title && a.Source == source && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return cloneAlert(a), nil
}

func (r *MemoryRepository) GetAlertsByIDs(ctx context.Context, ids []string) ([]*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	alerts := []*models.Alert{}
	for _, a := range r.alerts {
		if _, ok := want[a.ID]; ok {
			alerts = append(alerts, cloneAlert(a))
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
	return alerts, nil
}

func (r *MemoryRepository) DeleteAlertsBySource(ctx context.Context, source string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.alerts[:0]
	var deleted int64
	for _, a := range r.alerts {
		if a.Source == source {
			delete(r.byID, a.ID)
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept
	return deleted, nil
}

func (r *MemoryRepository) SourceSeverityCounts(ctx context.Context, sourcePrefix string) ([]models.SourceSeverityCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct{ source, severity string }
	grouped := make(map[key]int)
	for _, a := range r.alerts {
		if strings.HasPrefix(a.Source, sourcePrefix) {
			grouped[key{a.Source, a.Severity}]++
		}
	}

	counts := make([]models.SourceSeverityCount, 0, len(grouped))
	for k, n := range grouped {
		counts = append(counts, models.SourceSeverityCount{Source: k.source, Severity: k.severity, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Source != counts[j].Source {
			return counts[i].Source < counts[j].Source
		}
		return counts[i].Severity < counts[j].Severity
	})
	return counts, nil
}

func (r *MemoryRepository) CountAlertsWithSourceIP(ctx context.Context, ip string, since time.Time, excludeID string) (int, error) {
	return r.count(ctx, since, excludeID, func(a *models.Alert) bool {
		v, _ := a.RawData["source_ip"].(string)
		return v == ip
	})
}

func (r *MemoryRepository) CountAlertsFromSource(ctx context.Context, source string, since time.Time, excludeID string) (int, error) {
	return r.count(ctx, since, excludeID, func(a *models.Alert) bool {
		return a.Source == source
	})
}

func (r *MemoryRepository) count(ctx context.Context, since time.Time, excludeID string, match func(*models.Alert) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.alerts {
		if a.ID != excludeID && !a.CreatedAt.Before(since) && match(a) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListRecentAlerts(ctx context.Context, since time.Time, excludeID string, limit int) ([]*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	alerts := []*models.Alert{}
	for _, a := range r.alerts {
		if a.ID != excludeID && !a.CreatedAt.Before(since) {
			alerts = append(alerts, cloneAlert(a))
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (r *MemoryRepository) MergeRawData(ctx context.Context, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return ErrAlertNotFound
	}
	merged := maps.Clone(a.RawData)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, patch)
	a.RawData = merged
	return nil
}

func cloneAlert(a *models.Alert) *models.Alert {
	c := *a
	c.RawData = maps.Clone(a.RawData)
	return &c
}
