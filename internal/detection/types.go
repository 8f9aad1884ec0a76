package detection

import "github.com/telhawk-systems/socdetect/internal/severity"

// LogEntry is one non-blank input line.
type LogEntry struct {
	LineNumber int    `json:"line_number"`
	RawLine    string `json:"raw_line"`
	Timestamp  string `json:"timestamp"`
}

// ExtractedData holds the values pulled out of a matching line.
type ExtractedData struct {
	IPs []string `json:"ips,omitempty"`
	// DataSize is in bytes; nil when the line carried no size.
	DataSize *int64 `json:"data_size,omitempty"`
}

// LogMatch is a single line matched by a single rule.
type LogMatch struct {
	LineNumber    int           `json:"line_number"`
	RawLine       string        `json:"raw_line"`
	Timestamp     string        `json:"timestamp"`
	ExtractedData ExtractedData `json:"extracted_data"`
}

// IPCount is an address and how often it appeared in a detection's matches.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// TimeRange holds the timestamps of the first and last match in encounter
// order.
type TimeRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// AggregatedMetadata summarizes all matches of one rule.
type AggregatedMetadata struct {
	TotalOccurrences int       `json:"total_occurrences"`
	UniqueIPs        int       `json:"unique_ips"`
	TopIPs           []IPCount `json:"top_ips"`
	AffectedLines    []int     `json:"affected_lines"`
	TimeRange        TimeRange `json:"time_range"`
	// TotalBytes sums every extracted data size; zero when none were found.
	TotalBytes int64 `json:"total_bytes"`
}

// LogDetection is one rule's result for a parse run. It only exists for rules
// with at least one match.
type LogDetection struct {
	Rule      *Rule              `json:"rule"`
	Matches   []LogMatch         `json:"matches"`
	Severity  severity.Level     `json:"severity"`
	RiskScore int                `json:"risk_score"`
	Metadata  AggregatedMetadata `json:"aggregated_metadata"`
}

// ParsedLogResult is the output of Engine.Parse.
type ParsedLogResult struct {
	FileName         string         `json:"file_name"`
	TotalLines       int            `json:"total_lines"`
	Detections       []LogDetection `json:"detections"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// TotalMatches sums the occurrences of every detection.
func (r *ParsedLogResult) TotalMatches() int {
	n := 0
	for i := range r.Detections {
		n += r.Detections[i].Metadata.TotalOccurrences
	}
	return n
}
