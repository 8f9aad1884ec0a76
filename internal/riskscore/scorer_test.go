package riskscore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/ingestion"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/repository"
	"github.com/telhawk-systems/socdetect/internal/repository/repositorytest"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

var testNow = time.Date(2024, 2, 12, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func newTestScorer(repo repository.Repository) *Scorer {
	return NewScorer(repo, logging.Discard(), WithClock(clock))
}

func put(repo *repository.MemoryRepository, id, title, source, sev string, age time.Duration, raw map[string]any) {
	repo.Put(&models.Alert{
		ID:        id,
		Title:     title,
		Source:    source,
		Severity:  sev,
		RawData:   raw,
		CreatedAt: testNow.Add(-age),
	})
}

func patterns(adjs []models.RiskAdjustment) []string {
	out := make([]string, len(adjs))
	for i, a := range adjs {
		out[i] = a.Pattern
	}
	return out
}

func TestScore_NotFound(t *testing.T) {
	s := newTestScorer(repository.NewMemoryRepository())

	result, err := s.Score(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestScore_StoreErrorOnFetch(t *testing.T) {
	ctx := context.Background()
	repo := new(repositorytest.MockRepository)
	repo.On("GetAlertByID", ctx, "a-1").Return(nil, errors.New("connection refused"))

	result, err := newTestScorer(repo).Score(ctx, "a-1")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestScore_BaseScore(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		raw      map[string]any
		want     int
	}{
		{"critical", "critical", nil, 90},
		{"high", "high", nil, 70},
		{"medium", "medium", nil, 50},
		{"low", "low", nil, 30},
		{"info", "info", nil, 10},
		{"unknown severity", "urgent", nil, 50},
		{"precomputed int", "low", map[string]any{"risk_score": 85}, 85},
		{"precomputed float", "low", map[string]any{"risk_score": 64.6}, 65},
		{"precomputed out of range", "low", map[string]any{"risk_score": 140.0}, 100},
		{"non-numeric score ignored", "high", map[string]any{"risk_score": "n/a"}, 70},
		{"huge float", "low", map[string]any{"risk_score": 1e300}, 100},
		{"huge negative float", "critical", map[string]any{"risk_score": -1e300}, 0},
		{"infinite string", "low", map[string]any{"risk_score": "+Inf"}, 100},
		{"NaN string ignored", "high", map[string]any{"risk_score": "NaN"}, 70},
		{"huge int64", "low", map[string]any{"risk_score": int64(math.MaxInt64)}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			put(repo, "a-1", "Quiet", "src", tt.severity, 0, tt.raw)

			result, err := newTestScorer(repo).Score(context.Background(), "a-1")
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.want, result.OriginalScore)
			assert.Equal(t, tt.want, result.AdjustedScore)
			assert.Empty(t, result.Adjustments)
			assert.False(t, result.ShouldEscalate)
			assert.Empty(t, result.NewSeverity)

			stored, _ := repo.GetAlertByID(context.Background(), "a-1")
			assert.NotContains(t, stored.RawData, RawDataKey)
		})
	}
}

func TestScore_ClampsAdjustedScore(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(repo, "target", "[Log] Data Exfiltration Attempt", "Log Analysis: egress.log", "critical", 0,
		map[string]any{"risk_score": 90, "source_ip": "198.51.100.9", "transfer_size_mb": 150.0})
	put(repo, "peer-1", "Port Scan", "ids", "medium", 10*time.Minute, map[string]any{"source_ip": "198.51.100.9"})
	put(repo, "peer-2", "Port Scan", "ids", "medium", 20*time.Minute, map[string]any{"source_ip": "198.51.100.9"})

	result, err := newTestScorer(repo).Score(context.Background(), "target")
	require.NoError(t, err)

	assert.Equal(t, []string{PatternIPReputation, PatternDataExfiltration}, patterns(result.Adjustments))
	assert.Equal(t, 50, result.TotalAdjustment())
	assert.Equal(t, 90, result.OriginalScore)
	assert.Equal(t, 100, result.AdjustedScore)
	assert.False(t, result.ShouldEscalate)
}

func TestScore_EscalationOnlyOnUpwardTransition(t *testing.T) {
	tests := []struct {
		name         string
		riskScore    int
		wantAdjusted int
		wantEscalate bool
		wantSeverity string
	}{
		{"already critical", 90, 100, false, ""},
		{"already high", 70, 85, false, ""},
		{"medium crosses into high", 60, 75, true, "high"},
		{"medium stays below", 50, 65, false, ""},
		{"just below high", 69, 84, true, "high"},
		{"lands on threshold", 55, 70, true, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			put(repo, "target", "Noisy", "fw", "medium", 0, map[string]any{"risk_score": tt.riskScore})
			for i := 0; i < 3; i++ {
				put(repo, fmt.Sprintf("peer-%d", i), "Noisy", "fw", "medium", time.Duration(i+1)*time.Minute, nil)
			}

			result, err := newTestScorer(repo).Score(context.Background(), "target")
			require.NoError(t, err)

			assert.Equal(t, []string{PatternTimeBasedEscalation}, patterns(result.Adjustments))
			assert.Equal(t, tt.wantAdjusted, result.AdjustedScore)
			assert.Equal(t, tt.wantEscalate, result.ShouldEscalate)
			assert.Equal(t, tt.wantSeverity, result.NewSeverity)
		})
	}
}

func TestScore_EscalatesToCritical(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(repo, "target", "[Log] SQL Injection Attempt", "web", "medium", 0,
		map[string]any{"risk_score": 50, "source_ip": "203.0.113.45"})
	put(repo, "bf-1", "[Log] SSH Brute Force Attack", "auth", "high", 5*time.Minute, map[string]any{"source_ip": "203.0.113.45"})
	put(repo, "bf-2", "[Log] SSH Brute Force Attack", "auth2", "high", 6*time.Minute, map[string]any{"source_ip": "203.0.113.45"})

	result, err := newTestScorer(repo).Score(context.Background(), "target")
	require.NoError(t, err)

	assert.Equal(t, []string{PatternIPReputation, PatternAttackCombination}, patterns(result.Adjustments))
	assert.Equal(t, 95, result.AdjustedScore)
	assert.True(t, result.ShouldEscalate)
	assert.Equal(t, "critical", result.NewSeverity)
}

func TestScore_AllRulesInStableOrder(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(repo, "target", "[Log] Data Exfiltration after Brute Force", "egress", "low", 0,
		map[string]any{"risk_score": 10, "source_ip": "198.51.100.9", "transfer_size_mb": 512})
	for i := 0; i < 3; i++ {
		put(repo, fmt.Sprintf("peer-%d", i), "[Log] SQL Injection Attempt", "egress", "high", time.Minute,
			map[string]any{"source_ip": "198.51.100.9"})
	}

	for run := 0; run < 20; run++ {
		result, err := newTestScorer(repo).Score(context.Background(), "target")
		require.NoError(t, err)
		assert.Equal(t, []string{
			PatternIPReputation,
			PatternAttackCombination,
			PatternDataExfiltration,
			PatternTimeBasedEscalation,
		}, patterns(result.Adjustments))
		assert.Equal(t, 100, result.AdjustedScore)
	}
}

func TestScore_WindowExcludesOldAlerts(t *testing.T) {
	repo := repository.NewMemoryRepository()
	put(repo, "target", "[Log] SQL Injection Attempt", "fw", "medium", 0, map[string]any{"source_ip": "203.0.113.45"})
	for i := 0; i < 4; i++ {
		put(repo, fmt.Sprintf("old-%d", i), "[Log] SSH Brute Force Attack", "fw", "high", 2*time.Hour,
			map[string]any{"source_ip": "203.0.113.45"})
	}

	result, err := newTestScorer(repo).Score(context.Background(), "target")
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
	assert.Equal(t, 50, result.AdjustedScore)
}

func TestScore_ExfiltrationThreshold(t *testing.T) {
	tests := []struct {
		name  string
		title string
		raw   map[string]any
		want  bool
	}{
		{"over threshold", "Data Exfiltration", map[string]any{"transfer_size_mb": 100.5}, true},
		{"at threshold", "Data Exfiltration", map[string]any{"transfer_size_mb": 100}, false},
		{"data transfer title", "Unusual Data Transfer", map[string]any{"transfer_size_mb": "250"}, true},
		{"no size", "Data Exfiltration", nil, false},
		{"unrelated title", "Port Scan", map[string]any{"transfer_size_mb": 500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			put(repo, "target", tt.title, "src", "medium", 0, tt.raw)

			result, err := newTestScorer(repo).Score(context.Background(), "target")
			require.NoError(t, err)
			if tt.want {
				assert.Equal(t, []string{PatternDataExfiltration}, patterns(result.Adjustments))
			} else {
				assert.Empty(t, result.Adjustments)
			}
		})
	}
}

func TestScore_RuleFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	repo := new(repositorytest.MockRepository)
	alert := &models.Alert{
		ID:       "a-1",
		Title:    "[Log] SSH Brute Force Attack",
		Source:   "Log Analysis: auth.log",
		Severity: "medium",
		RawData:  map[string]any{"risk_score": 60, "source_ip": "203.0.113.45"},
	}
	since := testNow.Add(-time.Hour)

	repo.On("GetAlertByID", ctx, "a-1").Return(alert, nil)
	repo.On("CountAlertsWithSourceIP", ctx, "203.0.113.45", since, "a-1").Return(0, errors.New("timeout"))
	repo.On("ListRecentAlerts", ctx, since, "a-1", 50).Return(nil, errors.New("timeout"))
	repo.On("CountAlertsFromSource", ctx, "Log Analysis: auth.log", since, "a-1").Return(5, nil)
	repo.On("MergeRawData", ctx, "a-1", mock.MatchedBy(func(patch map[string]any) bool {
		record, ok := patch[RawDataKey].(map[string]any)
		return ok && record["adjusted_score"] == 75 && record["new_severity"] == "high"
	})).Return(nil)

	result, err := newTestScorer(repo).Score(ctx, "a-1")
	require.NoError(t, err)

	assert.Equal(t, []string{PatternTimeBasedEscalation}, patterns(result.Adjustments))
	assert.Equal(t, 75, result.AdjustedScore)
	assert.True(t, result.ShouldEscalate)
	repo.AssertExpectations(t)
}

func TestScore_PersistFailureDoesNotChangeResult(t *testing.T) {
	ctx := context.Background()
	repo := new(repositorytest.MockRepository)
	alert := &models.Alert{
		ID:       "a-1",
		Title:    "Data Exfiltration",
		Severity: "high",
		RawData:  map[string]any{"transfer_size_mb": 300.0},
	}

	repo.On("GetAlertByID", ctx, "a-1").Return(alert, nil)
	repo.On("ListRecentAlerts", ctx, mock.Anything, "a-1", 50).Return([]*models.Alert{}, nil)
	repo.On("MergeRawData", ctx, "a-1", mock.Anything).Return(errors.New("read-only replica"))

	result, err := newTestScorer(repo).Score(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 100, result.AdjustedScore)
	assert.False(t, result.ShouldEscalate)
	repo.AssertExpectations(t)
}

func TestScore_PersistMergesIntoRawData(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	put(repo, "target", "Data Exfiltration", "src", "medium", 0,
		map[string]any{"rule_id": "data-exfiltration", "transfer_size_mb": 200})

	first, err := newTestScorer(repo).Score(ctx, "target")
	require.NoError(t, err)
	_, err = newTestScorer(repo).Score(ctx, "target")
	require.NoError(t, err)

	stored, err := repo.GetAlertByID(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, "data-exfiltration", stored.RawData["rule_id"])
	record, ok := stored.RawData[RawDataKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, first.AdjustedScore, record["adjusted_score"])
	assert.Equal(t, true, record["should_escalate"])
	assert.Equal(t, "high", record["new_severity"])
	assert.Equal(t, "2024-02-12T12:00:00Z", record["scored_at"])
}

func TestScore_IngestedAlerts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(repository.WithMemoryClock(clock))
	engine := detection.NewEngine(detection.DefaultRules(), detection.WithClock(clock))
	adapter := ingestion.NewAdapter(repo, logging.Discard(), ingestion.WithInsertDelay(0), ingestion.WithClock(clock))

	var b strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "2024-02-12 10:15:%02d [AUTH] Failed password for admin from 203.0.113.45 port 22\n", 20+i)
	}
	b.WriteString("2024-02-12 10:16:00 GET /login?user=admin' OR '1'='1 from 203.0.113.45\n")

	parsed := engine.Parse(b.String(), "auth.log")
	require.Len(t, parsed.Detections, 2)
	summary, err := adapter.Ingest(ctx, parsed.Detections, "auth.log", nil)
	require.NoError(t, err)
	require.Len(t, summary.AlertIDs, 2)

	result, err := newTestScorer(repo).Score(ctx, summary.AlertIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 75, result.OriginalScore)
	assert.Equal(t, []string{PatternAttackCombination}, patterns(result.Adjustments))
	assert.Equal(t, 100, result.AdjustedScore)
	assert.False(t, result.ShouldEscalate)
}

// Both engines must translate scores to severities with the same table.
func TestSeverityThresholdsAgreeWithDetectionEngine(t *testing.T) {
	// base is score-30 and the exfiltration rule adds exactly 30
	for score := 30; score <= 100; score++ {
		rs := detection.MustRuleSet([]detection.Rule{{
			ID: "probe", Name: "Probe", Pattern: "probe", Severity: "info", BaseRiskScore: score,
		}})
		parsed := detection.NewEngine(rs, detection.WithClock(clock)).Parse("probe\n", "probe.log")
		require.Len(t, parsed.Detections, 1)
		engineSeverity := parsed.Detections[0].Severity

		repo := repository.NewMemoryRepository()
		put(repo, "target", "[Log] Data Exfiltration", "src", "info", 0, map[string]any{"risk_score": score - 30, "transfer_size_mb": 101})
		result, err := newTestScorer(repo).Score(context.Background(), "target")
		require.NoError(t, err)

		require.Equal(t, score, result.AdjustedScore)
		if result.ShouldEscalate {
			assert.Equal(t, string(engineSeverity), result.NewSeverity, "score %d", score)
		}
		assert.Equal(t, engineSeverity, severity.FromScore(result.AdjustedScore), "score %d", score)
	}
}
