// Package nats publishes alert lifecycle events and scores alerts as they are
// created.
package nats

import (
	"time"

	"github.com/telhawk-systems/socdetect/internal/models"
)

// AlertCreatedEvent is published to soc.alerts.created for every alert the
// ingestion adapter inserts.
type AlertCreatedEvent struct {
	AlertID   string    `json:"alert_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	RuleID    string    `json:"rule_id,omitempty"`
	RiskScore int       `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

// LogProcessedEvent is published to soc.logs.processed once a file has been
// parsed and ingested.
type LogProcessedEvent struct {
	FileName          string                `json:"file_name"`
	TotalLines        int                   `json:"total_lines"`
	Detections        int                   `json:"detections"`
	TotalMatches      int                   `json:"total_matches"`
	AlertsGenerated   int                   `json:"alerts_generated"`
	SkippedDuplicates int                   `json:"skipped_duplicates"`
	Failed            int                   `json:"failed"`
	SeverityBreakdown models.SeverityCounts `json:"severity_breakdown"`
	ProcessingTimeMs  int64                 `json:"processing_time_ms"`
	ProcessedAt       time.Time             `json:"processed_at"`
}

// AlertScoredEvent is published to soc.alerts.scored after risk scoring.
type AlertScoredEvent struct {
	AlertID        string                  `json:"alert_id"`
	OriginalScore  int                     `json:"original_score"`
	AdjustedScore  int                     `json:"adjusted_score"`
	Adjustments    []models.RiskAdjustment `json:"adjustments"`
	ShouldEscalate bool                    `json:"should_escalate"`
	NewSeverity    string                  `json:"new_severity,omitempty"`
	ScoredAt       time.Time               `json:"scored_at"`
}

// NewAlertScoredEvent converts a scoring result into its event.
func NewAlertScoredEvent(r *models.RiskScoringResult, scoredAt time.Time) *AlertScoredEvent {
	return &AlertScoredEvent{
		AlertID:        r.AlertID,
		OriginalScore:  r.OriginalScore,
		AdjustedScore:  r.AdjustedScore,
		Adjustments:    r.Adjustments,
		ShouldEscalate: r.ShouldEscalate,
		NewSeverity:    r.NewSeverity,
		ScoredAt:       scoredAt,
	}
}
