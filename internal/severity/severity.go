// Package severity holds the single risk-score threshold table shared by the
// detection engine and the risk scoring engine.
package severity

// Level is an alert severity.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
	Info     Level = "info"
)

// Score thresholds, inclusive lower bounds.
const (
	CriticalThreshold = 90
	HighThreshold     = 70
	MediumThreshold   = 50
	LowThreshold      = 30
)

// DefaultBaseScore is used for severities outside the table.
const DefaultBaseScore = 50

// Levels lists every level from most to least severe.
var Levels = []Level{Critical, High, Medium, Low, Info}

// FromScore maps a risk score to a severity.
func FromScore(score int) Level {
	switch {
	case score >= CriticalThreshold:
		return Critical
	case score >= HighThreshold:
		return High
	case score >= MediumThreshold:
		return Medium
	case score >= LowThreshold:
		return Low
	default:
		return Info
	}
}

// BaseScore maps a severity name to the score used when an alert carries no
// precomputed risk score.
func BaseScore(level string) int {
	switch Level(level) {
	case Critical:
		return 90
	case High:
		return 70
	case Medium:
		return 50
	case Low:
		return 30
	case Info:
		return 10
	default:
		return DefaultBaseScore
	}
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Valid reports whether level is one of the known levels.
func Valid(level string) bool {
	for _, l := range Levels {
		if string(l) == level {
			return true
		}
	}
	return false
}

func (l Level) String() string { return string(l) }
