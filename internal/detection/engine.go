// Package detection scans raw log text for attack signatures and aggregates
// the matches of every rule into a scored detection.
package detection

import (
	"slices"
	"strings"
	"time"

	"github.com/telhawk-systems/socdetect/internal/severity"
)

const (
	maxTopIPs = 10

	burstWindow     = time.Hour
	burstMinMatches = 5
	diverseIPCount  = 5
)

// frequencyBonuses are cumulative: a rule above 100 matches gets all three.
var frequencyBonuses = []struct {
	above int
	bonus int
}{
	{10, 10},
	{50, 10},
	{100, 10},
}

// Engine matches log content against a rule set. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	rules RuleSet
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for the timestamp fallback and the
// processing time measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over rules.
func NewEngine(rules RuleSet, opts ...Option) *Engine {
	e := &Engine{
		rules: rules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() RuleSet {
	return e.rules
}

// Parse scans content and returns one detection per rule that matched at
// least one line, in rule-table order. It never fails.
func (e *Engine) Parse(content, fileName string) *ParsedLogResult {
	start := e.now()
	entries := splitEntries(content)

	result := &ParsedLogResult{
		FileName:   fileName,
		TotalLines: len(entries),
		Detections: []LogDetection{},
	}

	for _, rule := range e.rules.rules {
		var matches []LogMatch
		for _, entry := range entries {
			if !rule.Match(entry.RawLine) {
				continue
			}
			matches = append(matches, e.newMatch(entry))
		}
		if len(matches) == 0 {
			continue
		}
		result.Detections = append(result.Detections, e.buildDetection(rule, matches))
	}

	result.ProcessingTimeMs = e.now().Sub(start).Milliseconds()
	return result
}

// splitEntries splits on any newline convention and drops blank lines. Line
// numbers index the filtered sequence, not the original file.
func splitEntries(content string) []LogEntry {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var entries []LogEntry
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, LogEntry{
			LineNumber: len(entries) + 1,
			RawLine:    line,
		})
	}
	return entries
}

func (e *Engine) newMatch(entry LogEntry) LogMatch {
	m := LogMatch{
		LineNumber: entry.LineNumber,
		RawLine:    entry.RawLine,
		Timestamp:  extractTimestamp(entry.RawLine, e.now()),
		ExtractedData: ExtractedData{
			IPs: extractIPs(entry.RawLine),
		},
	}
	if size, ok := extractDataSize(entry.RawLine); ok {
		m.ExtractedData.DataSize = &size
	}
	return m
}

func (e *Engine) buildDetection(rule *Rule, matches []LogMatch) LogDetection {
	meta := aggregate(matches)
	score := e.dynamicRiskScore(rule, matches, meta.UniqueIPs)
	return LogDetection{
		Rule:      rule,
		Matches:   matches,
		Severity:  severity.FromScore(score),
		RiskScore: score,
		Metadata:  meta,
	}
}

func aggregate(matches []LogMatch) AggregatedMetadata {
	counts := make(map[string]int)
	var order []string
	lines := make([]int, 0, len(matches))
	var totalBytes int64

	for _, m := range matches {
		lines = append(lines, m.LineNumber)
		for _, ip := range m.ExtractedData.IPs {
			if _, seen := counts[ip]; !seen {
				order = append(order, ip)
			}
			counts[ip]++
		}
		if m.ExtractedData.DataSize != nil {
			totalBytes = addBytes(totalBytes, *m.ExtractedData.DataSize)
		}
	}

	return AggregatedMetadata{
		TotalOccurrences: len(matches),
		UniqueIPs:        len(order),
		TopIPs:           topIPs(order, counts),
		AffectedLines:    lines,
		TimeRange: TimeRange{
			First: matches[0].Timestamp,
			Last:  matches[len(matches)-1].Timestamp,
		},
		TotalBytes: totalBytes,
	}
}

// topIPs sorts by count descending. The stable sort over first-seen order
// breaks ties by first appearance.
func topIPs(order []string, counts map[string]int) []IPCount {
	top := make([]IPCount, 0, len(order))
	for _, ip := range order {
		top = append(top, IPCount{IP: ip, Count: counts[ip]})
	}
	slices.SortStableFunc(top, func(a, b IPCount) int {
		return b.Count - a.Count
	})
	if len(top) > maxTopIPs {
		top = top[:maxTopIPs]
	}
	return top
}

func (e *Engine) dynamicRiskScore(rule *Rule, matches []LogMatch, uniqueIPs int) int {
	score := rule.BaseRiskScore
	count := len(matches)

	for _, fb := range frequencyBonuses {
		if count > fb.above {
			score += fb.bonus
		}
	}
	if uniqueIPs > diverseIPCount {
		score += 5
	}
	if count > burstMinMatches {
		if span, ok := e.timeSpan(matches); ok && span < burstWindow {
			score += 10
		}
	}

	return severity.Clamp(score)
}

// timeSpan is the distance between the earliest and latest parseable
// timestamps. It needs at least two of them.
func (e *Engine) timeSpan(matches []LogMatch) (time.Duration, bool) {
	ref := e.now()
	var earliest, latest time.Time
	valid := 0
	for _, m := range matches {
		t, ok := parseTimestamp(m.Timestamp, ref)
		if !ok {
			continue
		}
		if valid == 0 || t.Before(earliest) {
			earliest = t
		}
		if valid == 0 || t.After(latest) {
			latest = t
		}
		valid++
	}
	if valid < 2 {
		return 0, false
	}
	return latest.Sub(earliest), true
}
