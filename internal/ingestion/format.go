package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/models"
)

const (
	titlePrefix        = "[Log] "
	actionSeparator    = " → "
	maxDescribedLines  = 20
	maxRawDataLines    = 100
	maxSampleLines     = 5
	bytesPerMB         = 1 << 20
	transferSizePlaces = 100
)

// AlertTitle is the stable, rule-derived title used for deduplication.
func AlertTitle(rule *detection.Rule) string {
	return titlePrefix + rule.Name
}

// BuildPayload projects a detection onto the alert store's record shape.
func BuildPayload(d *detection.LogDetection, fileName string) *models.AlertPayload {
	return &models.AlertPayload{
		Title:            AlertTitle(d.Rule),
		Description:      describe(d),
		Source:           models.SourceForFile(fileName),
		Severity:         string(d.Severity),
		Status:           models.StatusPending,
		RawData:          rawData(d, fileName),
		ResolutionMethod: strings.Join(d.Rule.RecommendedActions, actionSeparator),
	}
}

func describe(d *detection.LogDetection) string {
	meta := d.Metadata
	var b strings.Builder

	if d.Rule.Description != "" {
		b.WriteString(d.Rule.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("Detection Summary:\n")
	fmt.Fprintf(&b, "- Total occurrences: %d\n", meta.TotalOccurrences)
	fmt.Fprintf(&b, "- Unique IPs: %d\n", meta.UniqueIPs)
	fmt.Fprintf(&b, "- Risk score: %d/100 (%s)\n", d.RiskScore, d.Severity)
	if d.Rule.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", d.Rule.Category)
	}
	if len(d.Rule.MITREAttack) > 0 {
		fmt.Fprintf(&b, "- MITRE ATT&CK: %s\n", strings.Join(d.Rule.MITREAttack, ", "))
	}
	fmt.Fprintf(&b, "- Time range: %s to %s\n", meta.TimeRange.First, meta.TimeRange.Last)

	if len(meta.TopIPs) > 0 {
		b.WriteString("\nTop Source IPs:\n")
		for _, ip := range meta.TopIPs {
			fmt.Fprintf(&b, "- %s (%d occurrences)\n", ip.IP, ip.Count)
		}
	}

	b.WriteString("\nAffected Lines: ")
	b.WriteString(joinLines(meta.AffectedLines, maxDescribedLines))
	b.WriteString("\n")

	if len(d.Matches) > 0 {
		b.WriteString("\nSample Log Entry:\n")
		b.WriteString(strings.TrimSpace(d.Matches[0].RawLine))
	}

	return b.String()
}

func joinLines(lines []int, max int) string {
	shown := lines
	if len(shown) > max {
		shown = shown[:max]
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = strconv.Itoa(n)
	}
	out := strings.Join(parts, ", ")
	if extra := len(lines) - len(shown); extra > 0 {
		out += fmt.Sprintf(" ... (+%d more)", extra)
	}
	return out
}

func rawData(d *detection.LogDetection, fileName string) map[string]any {
	meta := d.Metadata

	lines := meta.AffectedLines
	if len(lines) > maxRawDataLines {
		lines = lines[:maxRawDataLines]
	}

	samples := make([]string, 0, maxSampleLines)
	for i := 0; i < len(d.Matches) && i < maxSampleLines; i++ {
		samples = append(samples, d.Matches[i].RawLine)
	}

	mitre := d.Rule.MITREAttack
	if mitre == nil {
		mitre = []string{}
	}

	raw := map[string]any{
		"rule_id":           d.Rule.ID,
		"rule_name":         d.Rule.Name,
		"category":          d.Rule.Category,
		"mitre_attack":      mitre,
		"risk_score":        d.RiskScore,
		"base_risk_score":   d.Rule.BaseRiskScore,
		"file_name":         fileName,
		"total_occurrences": meta.TotalOccurrences,
		"unique_ips":        meta.UniqueIPs,
		"top_ips":           meta.TopIPs,
		"affected_lines":    lines,
		"time_range":        meta.TimeRange,
		"sample_lines":      samples,
	}

	if len(meta.TopIPs) > 0 {
		raw["source_ip"] = meta.TopIPs[0].IP
	}
	if meta.TotalBytes > 0 {
		raw["total_bytes"] = meta.TotalBytes
		mb := float64(meta.TotalBytes) / bytesPerMB
		raw["transfer_size_mb"] = math.Round(mb*transferSizePlaces) / transferSizePlaces
	}

	return raw
}
