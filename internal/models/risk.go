package models

// RiskAdjustment is one contextual score delta
type RiskAdjustment struct {
	Reason     string `json:"reason"`
	Adjustment int    `json:"adjustment"`
	Pattern    string `json:"pattern"`
}

// RiskScoringResult is the outcome of re-scoring an alert
type RiskScoringResult struct {
	AlertID        string           `json:"alert_id"`
	OriginalScore  int              `json:"original_score"`
	AdjustedScore  int              `json:"adjusted_score"`
	Adjustments    []RiskAdjustment `json:"adjustments"`
	ShouldEscalate bool             `json:"should_escalate"`
	NewSeverity    string           `json:"new_severity,omitempty"` // set only when escalating
}

// TotalAdjustment sums every adjustment delta.
func (r *RiskScoringResult) TotalAdjustment() int {
	total := 0
	for _, a := range r.Adjustments {
		total += a.Adjustment
	}
	return total
}
