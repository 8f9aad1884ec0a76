package models

import (
	"sort"
	"strings"
)

// SeverityCounts counts generated alerts per severity. Info alerts are not
// broken out.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the counter for severity.
func (c *SeverityCounts) Add(severity string) {
	switch severity {
	case "critical":
		c.Critical++
	case "high":
		c.High++
	case "medium":
		c.Medium++
	case "low":
		c.Low++
	}
}

// ProcessingSummary reports the outcome of ingesting one file's detections
type ProcessingSummary struct {
	FileName          string         `json:"file_name"`
	TotalMatches      int            `json:"total_matches"`
	AlertsGenerated   int            `json:"alerts_generated"`
	SkippedDuplicates int            `json:"skipped_duplicates"`
	Failed            int            `json:"failed"`
	SeverityBreakdown SeverityCounts `json:"severity_breakdown"`
	AlertIDs          []string       `json:"alert_ids"`
	Verified          int            `json:"verified"`
}

// SourceSeverityCount is one row of the grouped statistics query
type SourceSeverityCount struct {
	Source   string `json:"source"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// FileStats holds alert counts for a single analyzed file
type FileStats struct {
	FileName   string         `json:"file_name"`
	Source     string         `json:"source"`
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
}

// LogAnalysisStats aggregates log-analysis alerts by file and severity
type LogAnalysisStats struct {
	TotalAlerts int            `json:"total_alerts"`
	BySeverity  map[string]int `json:"by_severity"`
	Files       []FileStats    `json:"files"`
}

// NewLogAnalysisStats folds grouped rows into per-file and per-severity
// totals. Files are sorted by descending total, then name.
func NewLogAnalysisStats(rows []SourceSeverityCount) *LogAnalysisStats {
	stats := &LogAnalysisStats{
		BySeverity: make(map[string]int),
		Files:      []FileStats{},
	}
	byFile := make(map[string]*FileStats)

	for _, row := range rows {
		stats.TotalAlerts += row.Count
		stats.BySeverity[row.Severity] += row.Count

		fs, ok := byFile[row.Source]
		if !ok {
			fs = &FileStats{
				FileName:   strings.TrimSpace(strings.TrimPrefix(row.Source, SourcePrefix)),
				Source:     row.Source,
				BySeverity: make(map[string]int),
			}
			byFile[row.Source] = fs
		}
		fs.Total += row.Count
		fs.BySeverity[row.Severity] += row.Count
	}

	for _, fs := range byFile {
		stats.Files = append(stats.Files, *fs)
	}
	sort.Slice(stats.Files, func(i, j int) bool {
		if stats.Files[i].Total != stats.Files[j].Total {
			return stats.Files[i].Total > stats.Files[j].Total
		}
		return stats.Files[i].FileName < stats.Files[j].FileName
	})

	return stats
}
