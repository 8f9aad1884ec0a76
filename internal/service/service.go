// Package service ties the detection engine, ingestion adapter and risk
// scorer together with the optional archive, cache and event sinks.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/archive"
	"github.com/telhawk-systems/socdetect/internal/cache"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/ingestion"
	"github.com/telhawk-systems/socdetect/internal/metrics"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/nats"
	"github.com/telhawk-systems/socdetect/internal/repository"
	"github.com/telhawk-systems/socdetect/internal/riskscore"
)

// Indexer archives individual detection matches.
type Indexer interface {
	IndexDetections(ctx context.Context, result *detection.ParsedLogResult) (*archive.IndexResult, error)
}

// EvidenceStore keeps the raw content of analyzed files.
type EvidenceStore interface {
	Store(ctx context.Context, fileName, content string) (string, error)
}

// EventPublisher announces pipeline events.
type EventPublisher interface {
	PublishAlertCreated(ctx context.Context, event *nats.AlertCreatedEvent) error
	PublishLogProcessed(ctx context.Context, event *nats.LogProcessedEvent) error
	PublishAlertScored(ctx context.Context, event *nats.AlertScoredEvent) error
}

// AnalyzeResult is the outcome of analyzing one file.
type AnalyzeResult struct {
	Parse       *detection.ParsedLogResult `json:"parse"`
	Summary     *models.ProcessingSummary  `json:"summary"`
	Archive     *archive.IndexResult       `json:"archive,omitempty"`
	EvidenceKey string                     `json:"evidence_key,omitempty"`
}

// Service runs the detection pipeline.
type Service struct {
	engine    *detection.Engine
	repo      repository.Repository
	adapter   *ingestion.Adapter
	scorer    *riskscore.Scorer
	cache     *cache.StatsCache
	publisher EventPublisher
	indexer   Indexer
	evidence  EvidenceStore
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStatsCache caches the statistics query.
func WithStatsCache(c *cache.StatsCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithPublisher publishes alert and file events after ingestion and scoring.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithIndexer archives detection matches during Analyze.
func WithIndexer(x Indexer) Option {
	return func(s *Service) {
		s.indexer = x
	}
}

// WithEvidenceStore uploads raw content during Analyze.
func WithEvidenceStore(e EvidenceStore) Option {
	return func(s *Service) {
		s.evidence = e
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(engine *detection.Engine, repo repository.Repository, adapter *ingestion.Adapter, scorer *riskscore.Scorer, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		engine:  engine,
		repo:    repo,
		adapter: adapter,
		scorer:  scorer,
		logger:  logger.WithComponent("service"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the alert store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Rules returns the active detection rules.
func (s *Service) Rules() []*detection.Rule {
	return s.engine.Rules().Rules()
}

// Parse runs detection without touching the alert store.
func (s *Service) Parse(ctx context.Context, content, fileName string) *detection.ParsedLogResult {
	start := time.Now()
	result := s.engine.Parse(content, fileName)
	metrics.ParseDuration.Observe(time.Since(start).Seconds())

	metrics.LinesScannedTotal.Add(float64(result.TotalLines))
	for i := range result.Detections {
		d := &result.Detections[i]
		metrics.DetectionsTotal.WithLabelValues(d.Rule.ID, string(d.Severity)).Inc()
	}

	s.logger.DebugContext(ctx, "log parsed",
		logging.FileName(fileName),
		"total_lines", result.TotalLines,
		"detections", len(result.Detections),
		"total_matches", result.TotalMatches(),
	)
	return result
}

// Analyze parses content and stores one alert per detection. Archive,
// evidence, cache and event failures are logged and do not fail the call.
// When ctx is canceled mid-batch the partial result is returned with the
// context error.
func (s *Service) Analyze(ctx context.Context, content, fileName string, onProgress ingestion.ProgressFunc) (*AnalyzeResult, error) {
	res := &AnalyzeResult{Parse: s.Parse(ctx, content, fileName)}

	if s.evidence != nil {
		key, err := s.evidence.Store(ctx, fileName, content)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to store raw log", logging.FileName(fileName), logging.Error(err))
		}
		res.EvidenceKey = key
	}

	if s.indexer != nil {
		ar, err := s.indexer.IndexDetections(ctx, res.Parse)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to archive detection matches", logging.FileName(fileName), logging.Error(err))
		}
		res.Archive = ar
	}

	summary, err := s.adapter.Ingest(ctx, res.Parse.Detections, fileName, onProgress)
	res.Summary = summary
	if summary != nil && summary.AlertsGenerated > 0 {
		s.invalidateStats(context.WithoutCancel(ctx))
	}
	if err != nil {
		return res, fmt.Errorf("ingestion interrupted: %w", err)
	}

	s.publishIngested(ctx, res)
	return res, nil
}

// Score re-scores an alert and publishes the result. It returns (nil, nil)
// when the alert does not exist.
func (s *Service) Score(ctx context.Context, alertID string) (*models.RiskScoringResult, error) {
	result, err := s.scorer.Score(ctx, alertID)
	if err != nil || result == nil {
		return result, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAlertScored(ctx, nats.NewAlertScoredEvent(result, s.now())); err != nil {
			s.logger.WarnContext(ctx, "failed to publish alert scored event", logging.AlertID(alertID), logging.Error(err))
		}
	}
	return result, nil
}

// Purge deletes every alert generated for fileName.
func (s *Service) Purge(ctx context.Context, fileName string) (int64, error) {
	n, err := s.adapter.DeleteFileAlerts(ctx, fileName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete alerts for %s: %w", fileName, err)
	}
	if n > 0 {
		s.invalidateStats(ctx)
	}
	return n, nil
}

// Stats returns log-analysis statistics, from the cache when possible.
func (s *Service) Stats(ctx context.Context) (*models.LogAnalysisStats, error) {
	if stats, ok, err := s.cache.Get(ctx); err != nil {
		s.logger.WarnContext(ctx, "stats cache read failed", logging.Error(err))
	} else if ok {
		return stats, nil
	}

	stats, err := s.adapter.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	if err := s.cache.Set(ctx, stats); err != nil {
		s.logger.WarnContext(ctx, "stats cache write failed", logging.Error(err))
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed", logging.Error(err))
	}
}

// publishIngested announces every inserted alert and the processed file.
func (s *Service) publishIngested(ctx context.Context, res *AnalyzeResult) {
	if s.publisher == nil {
		return
	}
	summary := res.Summary

	if len(summary.AlertIDs) > 0 {
		alerts, err := s.repo.GetAlertsByIDs(ctx, summary.AlertIDs)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load inserted alerts for events",
				logging.FileName(summary.FileName), logging.Error(err))
		}
		for _, a := range alerts {
			if err := s.publisher.PublishAlertCreated(ctx, alertCreatedEvent(a)); err != nil {
				s.logger.WarnContext(ctx, "failed to publish alert created event",
					logging.AlertID(a.ID), logging.Error(err))
			}
		}
	}

	event := &nats.LogProcessedEvent{
		FileName:          summary.FileName,
		TotalLines:        res.Parse.TotalLines,
		Detections:        len(res.Parse.Detections),
		TotalMatches:      summary.TotalMatches,
		AlertsGenerated:   summary.AlertsGenerated,
		SkippedDuplicates: summary.SkippedDuplicates,
		Failed:            summary.Failed,
		SeverityBreakdown: summary.SeverityBreakdown,
		ProcessingTimeMs:  res.Parse.ProcessingTimeMs,
		ProcessedAt:       s.now().UTC(),
	}
	if err := s.publisher.PublishLogProcessed(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish log processed event",
			logging.FileName(summary.FileName), logging.Error(err))
	}
}

func alertCreatedEvent(a *models.Alert) *nats.AlertCreatedEvent {
	ruleID, _ := a.RawData["rule_id"].(string)
	return &nats.AlertCreatedEvent{
		AlertID:   a.ID,
		Title:     a.Title,
		Source:    a.Source,
		Severity:  a.Severity,
		RuleID:    ruleID,
		RiskScore: riskscore.BaseScore(a),
		CreatedAt: a.CreatedAt,
	}
}
