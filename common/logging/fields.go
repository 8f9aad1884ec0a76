package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every component so log queries stay stable.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldRuleID    = "rule_id"
	FieldAlertID   = "alert_id"
	FieldFileName  = "file_name"
	FieldSource    = "source"
	FieldSeverity  = "severity"
	FieldRiskScore = "risk_score"
	FieldPattern   = "pattern"
	FieldSubject   = "subject"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Component returns a slog attribute naming the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// RuleID returns a slog attribute for a detection rule ID.
func RuleID(id string) slog.Attr {
	return slog.String(FieldRuleID, id)
}

// AlertID returns a slog attribute for an alert ID.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// FileName returns a slog attribute for an analyzed log file name.
func FileName(name string) slog.Attr {
	return slog.String(FieldFileName, name)
}

// Source returns a slog attribute for an alert source label.
func Source(source string) slog.Attr {
	return slog.String(FieldSource, source)
}

// Severity returns a slog attribute for a severity level.
func Severity(level string) slog.Attr {
	return slog.String(FieldSeverity, level)
}

// RiskScore returns a slog attribute for a risk score.
func RiskScore(score int) slog.Attr {
	return slog.Int(FieldRiskScore, score)
}

// Pattern returns a slog attribute for a risk-adjustment pattern tag.
func Pattern(tag string) slog.Attr {
	return slog.String(FieldPattern, tag)
}

// Subject returns a slog attribute for a message bus subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Duration returns a slog attribute for an elapsed duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
