package models

import "time"

// Alert statuses
const (
	StatusPending = "pending"
)

// SourcePrefix marks alerts produced by log analysis.
const SourcePrefix = "Log Analysis:"

// Alert is a persisted alert record
type Alert struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Source           string         `json:"source"`
	Severity         string         `json:"severity"` // critical, high, medium, low, info
	Status           string         `json:"status"`
	RawData          map[string]any `json:"raw_data"`
	ResolutionMethod string         `json:"resolution_method,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AlertPayload is an alert before the store assigns its id and created_at
type AlertPayload struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Source           string         `json:"source"`
	Severity         string         `json:"severity"`
	Status           string         `json:"status"`
	RawData          map[string]any `json:"raw_data"`
	ResolutionMethod string         `json:"resolution_method"`
}

// SourceForFile returns the alert source recorded for a log file.
func SourceForFile(fileName string) string {
	return SourcePrefix + " " + fileName
}
