// Package riskscore re-scores persisted alerts by correlating them with
// recently ingested alerts.
package riskscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/metrics"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/repository"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

const (
	DefaultLookback          = time.Hour
	DefaultRecentAlertLimit  = 50
	ipReputationMinAlerts    = 2
	sameSourceMinAlerts      = 3
	exfiltrationThresholdMB  = 100
	ipReputationBonus        = 20
	attackCombinationBonus   = 25
	exfiltrationBonus        = 30
	timeBasedEscalationBonus = 15
)

// Adjustment patterns
const (
	PatternIPReputation        = "ip_reputation"
	PatternAttackCombination   = "attack_combination"
	PatternDataExfiltration    = "data_exfiltration"
	PatternTimeBasedEscalation = "time_based_escalation"
)

// RawDataKey is the raw_data key the scoring result is merged under.
const RawDataKey = "risk_adjustment"

// snapshot is what every adjustment rule of one invocation reads.
type snapshot struct {
	alert *models.Alert
	now   time.Time
	since time.Time
}

type adjustmentRule func(ctx context.Context, snap snapshot) (*models.RiskAdjustment, error)

// Scorer computes contextual risk scores for alerts.
type Scorer struct {
	repo        repository.Repository
	logger      *logging.Logger
	lookback    time.Duration
	recentLimit int
	now         func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLookback sets the correlation window.
func WithLookback(d time.Duration) Option {
	return func(s *Scorer) {
		s.lookback = d
	}
}

// WithRecentAlertLimit caps how many recent alerts the attack combination
// rule inspects.
func WithRecentAlertLimit(n int) Option {
	return func(s *Scorer) {
		s.recentLimit = n
	}
}

// WithClock overrides the clock the correlation window is measured from.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// NewScorer creates a risk scorer.
func NewScorer(repo repository.Repository, logger *logging.Logger, opts ...Option) *Scorer {
	s := &Scorer{
		repo:        repo,
		logger:      logger.WithComponent("riskscore"),
		lookback:    DefaultLookback,
		recentLimit: DefaultRecentAlertLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score re-derives the risk score of alertID. It returns (nil, nil) when the
// alert does not exist. A failing adjustment rule only drops that rule's
// adjustment, and a failure to persist the result is logged and ignored.
func (s *Scorer) Score(ctx context.Context, alertID string) (*models.RiskScoringResult, error) {
	start := time.Now()
	defer func() {
		metrics.RiskScoringDuration.Observe(time.Since(start).Seconds())
	}()

	alert, err := s.repo.GetAlertByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return nil, nil
		}
		metrics.StoreErrors.WithLabelValues("get_alert").Inc()
		return nil, fmt.Errorf("failed to load alert: %w", err)
	}

	now := s.now()
	snap := snapshot{alert: alert, now: now, since: now.Add(-s.lookback)}
	base := BaseScore(alert)

	adjustments := s.evaluate(ctx, snap)

	total := 0
	for _, adj := range adjustments {
		total += adj.Adjustment
		metrics.RiskAdjustmentsTotal.WithLabelValues(adj.Pattern).Inc()
	}

	result := &models.RiskScoringResult{
		AlertID:       alert.ID,
		OriginalScore: base,
		AdjustedScore: severity.Clamp(base + total),
		Adjustments:   adjustments,
	}
	if result.AdjustedScore >= severity.HighThreshold && base < severity.HighThreshold {
		result.ShouldEscalate = true
		result.NewSeverity = string(severity.FromScore(result.AdjustedScore))
		metrics.EscalationsTotal.Inc()
	}

	if len(adjustments) > 0 {
		s.persist(ctx, result, now)
	}

	s.logger.DebugContext(ctx, "alert scored",
		logging.AlertID(alert.ID),
		logging.RiskScore(result.AdjustedScore),
		"original_score", base,
		"adjustments", len(adjustments),
		"escalate", result.ShouldEscalate,
	)

	return result, nil
}

// evaluate runs every rule concurrently against the same snapshot. The
// returned adjustments follow rule order, not completion order.
func (s *Scorer) evaluate(ctx context.Context, snap snapshot) []models.RiskAdjustment {
	rules := []struct {
		pattern string
		fn      adjustmentRule
	}{
		{PatternIPReputation, s.ipReputation},
		{PatternAttackCombination, s.attackCombination},
		{PatternDataExfiltration, s.dataExfiltration},
		{PatternTimeBasedEscalation, s.timeBasedEscalation},
	}

	results := make([]*models.RiskAdjustment, len(rules))
	var wg sync.WaitGroup
	for i, rule := range rules {
		wg.Add(1)
		go func(i int, pattern string, fn adjustmentRule) {
			defer wg.Done()
			adj, err := fn(ctx, snap)
			if err != nil {
				metrics.StoreErrors.WithLabelValues(pattern).Inc()
				s.logger.WarnContext(ctx, "risk adjustment rule failed",
					logging.AlertID(snap.alert.ID),
					logging.Pattern(pattern),
					logging.Error(err),
				)
				return
			}
			results[i] = adj
		}(i, rule.pattern, rule.fn)
	}
	wg.Wait()

	adjustments := []models.RiskAdjustment{}
	for _, adj := range results {
		if adj != nil {
			adjustments = append(adjustments, *adj)
		}
	}
	return adjustments
}

func (s *Scorer) ipReputation(ctx context.Context, snap snapshot) (*models.RiskAdjustment, error) {
	ip, _ := snap.alert.RawData["source_ip"].(string)
	if ip == "" {
		return nil, nil
	}

	n, err := s.repo.CountAlertsWithSourceIP(ctx, ip, snap.since, snap.alert.ID)
	if err != nil {
		return nil, err
	}
	if n < ipReputationMinAlerts {
		return nil, nil
	}
	return &models.RiskAdjustment{
		Reason:     fmt.Sprintf("Source IP %s appeared in %d other alerts within %s", ip, n, s.lookback),
		Adjustment: ipReputationBonus,
		Pattern:    PatternIPReputation,
	}, nil
}

func (s *Scorer) attackCombination(ctx context.Context, snap snapshot) (*models.RiskAdjustment, error) {
	recent, err := s.repo.ListRecentAlerts(ctx, snap.since, snap.alert.ID, s.recentLimit)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(recent)+1)
	for _, a := range recent {
		titles = append(titles, strings.ToLower(a.Title))
	}
	titles = append(titles, strings.ToLower(snap.alert.Title))

	var bruteForce, injection bool
	for _, t := range titles {
		if strings.Contains(t, "brute force") {
			bruteForce = true
		}
		if strings.Contains(t, "sql") || strings.Contains(t, "injection") {
			injection = true
		}
	}
	if !bruteForce || !injection {
		return nil, nil
	}
	return &models.RiskAdjustment{
		Reason:     "Brute force and injection activity observed together, indicating a multi-stage attack",
		Adjustment: attackCombinationBonus,
		Pattern:    PatternAttackCombination,
	}, nil
}

func (s *Scorer) dataExfiltration(_ context.Context, snap snapshot) (*models.RiskAdjustment, error) {
	title := strings.ToLower(snap.alert.Title)
	if !strings.Contains(title, "exfiltration") && !strings.Contains(title, "data transfer") {
		return nil, nil
	}

	mb, ok := number(snap.alert.RawData["transfer_size_mb"])
	if !ok || mb <= exfiltrationThresholdMB {
		return nil, nil
	}
	return &models.RiskAdjustment{
		Reason:     fmt.Sprintf("Data transfer of %.2f MB exceeds the %d MB threshold", mb, exfiltrationThresholdMB),
		Adjustment: exfiltrationBonus,
		Pattern:    PatternDataExfiltration,
	}, nil
}

func (s *Scorer) timeBasedEscalation(ctx context.Context, snap snapshot) (*models.RiskAdjustment, error) {
	if snap.alert.Source == "" {
		return nil, nil
	}

	n, err := s.repo.CountAlertsFromSource(ctx, snap.alert.Source, snap.since, snap.alert.ID)
	if err != nil {
		return nil, err
	}
	if n < sameSourceMinAlerts {
		return nil, nil
	}
	return &models.RiskAdjustment{
		Reason:     fmt.Sprintf("%d other alerts from %q within %s", n, snap.alert.Source, s.lookback),
		Adjustment: timeBasedEscalationBonus,
		Pattern:    PatternTimeBasedEscalation,
	}, nil
}

func (s *Scorer) persist(ctx context.Context, result *models.RiskScoringResult, scoredAt time.Time) {
	record := map[string]any{
		"original_score":  result.OriginalScore,
		"adjusted_score":  result.AdjustedScore,
		"adjustments":     result.Adjustments,
		"should_escalate": result.ShouldEscalate,
		"scored_at":       scoredAt.UTC().Format(time.RFC3339),
	}
	if result.NewSeverity != "" {
		record["new_severity"] = result.NewSeverity
	}

	if err := s.repo.MergeRawData(ctx, result.AlertID, map[string]any{RawDataKey: record}); err != nil {
		metrics.StoreErrors.WithLabelValues("merge_raw_data").Inc()
		s.logger.WarnContext(ctx, "failed to persist risk adjustment",
			logging.AlertID(result.AlertID), logging.Error(err))
	}
}

// BaseScore is the alert's precomputed raw_data.risk_score when present,
// otherwise the score for its severity. The precomputed value is clamped to
// [0,100] before rounding; NaN is ignored.
func BaseScore(alert *models.Alert) int {
	if v, ok := number(alert.RawData["risk_score"]); ok && !math.IsNaN(v) {
		return int(math.Round(math.Max(0, math.Min(100, v))))
	}
	return severity.BaseScore(alert.Severity)
}

// number reads a numeric raw_data value, which may be a Go number or a JSON
// decoded float64, json.Number or numeric string.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
