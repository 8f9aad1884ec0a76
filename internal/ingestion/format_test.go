package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/models"
)

func TestBuildPayload_BruteForce(t *testing.T) {
	detections := parseSample(t, bruteForceContent())
	require.Len(t, detections, 1)

	p := BuildPayload(&detections[0], "auth.log")

	assert.Equal(t, "[Log] SSH Brute Force Attack", p.Title)
	assert.Equal(t, "Log Analysis: auth.log", p.Source)
	assert.Equal(t, "high", p.Severity)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, strings.Join(detections[0].Rule.RecommendedActions, " → "), p.ResolutionMethod)
	assert.Contains(t, p.ResolutionMethod, " → ")

	assert.Equal(t, "brute-force-ssh", p.RawData["rule_id"])
	assert.Equal(t, []string{"T1110", "T1110.001"}, p.RawData["mitre_attack"])
	assert.Equal(t, 75, p.RawData["risk_score"])
	assert.Equal(t, 5, p.RawData["total_occurrences"])
	assert.Equal(t, 1, p.RawData["unique_ips"])
	assert.Equal(t, "203.0.113.45", p.RawData["source_ip"])
	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.RawData["affected_lines"])
	assert.Len(t, p.RawData["sample_lines"], 5)
	assert.NotContains(t, p.RawData, "transfer_size_mb")

	assert.Contains(t, p.Description, "Detection Summary:")
	assert.Contains(t, p.Description, "- Total occurrences: 5")
	assert.Contains(t, p.Description, "- Risk score: 75/100 (high)")
	assert.Contains(t, p.Description, "Top Source IPs:\n- 203.0.113.45 (5 occurrences)")
	assert.Contains(t, p.Description, "Affected Lines: 1, 2, 3, 4, 5")
	assert.Contains(t, p.Description, "Sample Log Entry:\n2024-02-12 10:15:20 [AUTH] Failed password")
}

func TestBuildPayload_TransferSize(t *testing.T) {
	content := "2024-02-12T10:00:00Z large outbound transfer of 150 MB to 198.51.100.9\n" +
		"2024-02-12T10:05:00Z large outbound transfer of 512 KB to 198.51.100.9\n"
	detections := parseSample(t, content)
	require.Len(t, detections, 1)

	p := BuildPayload(&detections[0], "egress.log")

	assert.Equal(t, int64(150<<20+512<<10), p.RawData["total_bytes"])
	assert.Equal(t, 150.5, p.RawData["transfer_size_mb"])
	assert.Equal(t, "198.51.100.9", p.RawData["source_ip"])
}

func TestBuildPayload_NoIPs(t *testing.T) {
	detections := parseSample(t, "2024-02-12T10:21:00Z ClamAV: Trojan.Generic FOUND in /tmp/payload\n")
	require.Len(t, detections, 1)

	p := BuildPayload(&detections[0], "av.log")

	assert.NotContains(t, p.RawData, "source_ip")
	assert.NotContains(t, p.Description, "Top Source IPs")
	assert.Equal(t, "critical", p.Severity)
}

func TestBuildPayload_TruncatesLines(t *testing.T) {
	rs := detection.MustRuleSet([]detection.Rule{{
		ID: "hit", Name: "Hit", Pattern: "hit", Severity: "low", BaseRiskScore: 30,
	}})
	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "hit %d\n", i)
	}
	result := detection.NewEngine(rs).Parse(b.String(), "big.log")
	require.Len(t, result.Detections, 1)

	p := BuildPayload(&result.Detections[0], "big.log")

	assert.Len(t, p.RawData["affected_lines"], 100)
	assert.Len(t, p.RawData["sample_lines"], 5)
	assert.Contains(t, p.Description, "... (+130 more)")
	assert.Equal(t, []string{}, p.RawData["mitre_attack"])
	assert.Empty(t, p.ResolutionMethod)
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", joinLines(nil, 3))
	assert.Equal(t, "1, 2", joinLines([]int{1, 2}, 3))
	assert.Equal(t, "1, 2, 3 ... (+2 more)", joinLines([]int{1, 2, 3, 4, 5}, 3))
}
