// Package ingestion turns detections into persisted alerts, suppressing
// duplicates of the same rule and file within a rolling window.
package ingestion

import (
	"context"
	"time"

	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/metrics"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/repository"
)

const (
	DefaultInsertDelay = 100 * time.Millisecond
	DefaultDedupWindow = 24 * time.Hour
)

// ProgressFunc is called after every detection with its 1-based index and
// the batch size.
type ProgressFunc func(index, total int)

// Adapter converts detections into alerts one at a time. Detections are never
// inserted concurrently, so each duplicate check sees every earlier insert of
// the same batch.
type Adapter struct {
	repo        repository.Repository
	logger      *logging.Logger
	insertDelay time.Duration
	dedupWindow time.Duration
	now         func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithInsertDelay sets the pause between inserts. Zero disables throttling.
func WithInsertDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.insertDelay = d
	}
}

// WithDedupWindow sets how far back the duplicate check looks.
func WithDedupWindow(d time.Duration) Option {
	return func(a *Adapter) {
		a.dedupWindow = d
	}
}

// WithClock overrides the clock the duplicate window is measured from.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// NewAdapter creates an ingestion adapter.
func NewAdapter(repo repository.Repository, logger *logging.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		repo:        repo,
		logger:      logger.WithComponent("ingestion"),
		insertDelay: DefaultInsertDelay,
		dedupWindow: DefaultDedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest stores one alert per detection unless an alert with the same title
// and source exists inside the dedup window. Store failures are logged and
// the batch continues; only context cancellation stops it early, in which
// case the partial summary is returned with the context error.
func (a *Adapter) Ingest(ctx context.Context, detections []detection.LogDetection, fileName string, onProgress ProgressFunc) (*models.ProcessingSummary, error) {
	source := models.SourceForFile(fileName)
	summary := &models.ProcessingSummary{
		FileName: fileName,
		AlertIDs: []string{},
	}
	for i := range detections {
		summary.TotalMatches += detections[i].Metadata.TotalOccurrences
	}

	total := len(detections)
	for i := range detections {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		d := &detections[i]
		inserted := a.process(ctx, d, fileName, source, summary)

		if onProgress != nil {
			onProgress(i+1, total)
		}

		if inserted && i < total-1 {
			if err := a.throttle(ctx); err != nil {
				return summary, err
			}
		}
	}

	a.verify(ctx, summary)

	a.logger.InfoContext(ctx, "ingestion complete",
		logging.FileName(fileName),
		"alerts_generated", summary.AlertsGenerated,
		"skipped_duplicates", summary.SkippedDuplicates,
		"failed", summary.Failed,
		"verified", summary.Verified,
	)

	return summary, nil
}

// process handles one detection and reports whether it inserted an alert.
func (a *Adapter) process(ctx context.Context, d *detection.LogDetection, fileName, source string, summary *models.ProcessingSummary) bool {
	title := AlertTitle(d.Rule)
	log := a.logger.With(logging.RuleID(d.Rule.ID), logging.FileName(fileName))

	since := a.now().Add(-a.dedupWindow)
	dup, err := a.repo.HasRecentAlert(ctx, title, source, since)
	if err != nil {
		// fail open
		metrics.StoreErrors.WithLabelValues("dedup_check").Inc()
		log.WarnContext(ctx, "duplicate check failed, inserting anyway", logging.Error(err))
	}
	if dup {
		summary.SkippedDuplicates++
		metrics.AlertsIngestedTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		log.DebugContext(ctx, "skipping duplicate alert")
		return false
	}

	alert, err := a.repo.InsertAlert(ctx, BuildPayload(d, fileName))
	if err != nil {
		summary.Failed++
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		metrics.AlertsIngestedTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.ErrorContext(ctx, "failed to insert alert", logging.Error(err))
		return false
	}

	summary.AlertsGenerated++
	summary.AlertIDs = append(summary.AlertIDs, alert.ID)
	summary.SeverityBreakdown.Add(alert.Severity)
	metrics.AlertsIngestedTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
	log.DebugContext(ctx, "alert created",
		logging.AlertID(alert.ID),
		logging.Severity(alert.Severity),
		logging.RiskScore(d.RiskScore),
	)
	return true
}

func (a *Adapter) throttle(ctx context.Context) error {
	if a.insertDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(a.insertDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// verify re-reads the inserted alerts to confirm the store shows them.
func (a *Adapter) verify(ctx context.Context, summary *models.ProcessingSummary) {
	if len(summary.AlertIDs) == 0 {
		return
	}

	alerts, err := a.repo.GetAlertsByIDs(ctx, summary.AlertIDs)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("verify").Inc()
		a.logger.WarnContext(ctx, "failed to verify inserted alerts",
			logging.FileName(summary.FileName), logging.Error(err))
		return
	}

	summary.Verified = len(alerts)
	if summary.Verified != len(summary.AlertIDs) {
		a.logger.WarnContext(ctx, "inserted alerts not visible in store",
			logging.FileName(summary.FileName),
			"expected", len(summary.AlertIDs),
			"visible", summary.Verified,
		)
	}
}

// DeleteFileAlerts removes every alert produced for fileName and returns how
// many were deleted.
func (a *Adapter) DeleteFileAlerts(ctx context.Context, fileName string) (int64, error) {
	n, err := a.repo.DeleteAlertsBySource(ctx, models.SourceForFile(fileName))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		return 0, err
	}
	a.logger.InfoContext(ctx, "deleted file alerts", logging.FileName(fileName), "deleted", n)
	return n, nil
}

// Stats aggregates log-analysis alerts by file and severity.
func (a *Adapter) Stats(ctx context.Context) (*models.LogAnalysisStats, error) {
	rows, err := a.repo.SourceSeverityCounts(ctx, models.SourcePrefix)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("stats").Inc()
		return nil, err
	}
	return models.NewLogAnalysisStats(rows), nil
}
