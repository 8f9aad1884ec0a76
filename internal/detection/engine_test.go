package detection

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

var fixedNow = time.Date(2024, 2, 12, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	if len(rules) == 0 {
		return NewEngine(DefaultRules(), WithClock(fixedClock))
	}
	rs, err := NewRuleSet(rules)
	require.NoError(t, err)
	return NewEngine(rs, WithClock(fixedClock))
}

func testRule(id, pattern string, base int) Rule {
	return Rule{
		ID:            id,
		Name:          "Rule " + id,
		Pattern:       pattern,
		Severity:      "medium",
		BaseRiskScore: base,
	}
}

func bruteForceLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-02-12 10:15:%02d [AUTH] Failed password for admin from 203.0.113.45 port 22\n", 20+i)
	}
	return b.String()
}

func TestParse_BruteForceScenario(t *testing.T) {
	e := newTestEngine(t)

	result := e.Parse(bruteForceLines(5), "auth.log")

	assert.Equal(t, "auth.log", result.FileName)
	assert.Equal(t, 5, result.TotalLines)
	require.Len(t, result.Detections, 1)

	d := result.Detections[0]
	assert.Equal(t, "brute-force-ssh", d.Rule.ID)
	assert.Equal(t, 5, d.Metadata.TotalOccurrences)
	assert.Equal(t, 1, d.Metadata.UniqueIPs)
	assert.Equal(t, []IPCount{{IP: "203.0.113.45", Count: 5}}, d.Metadata.TopIPs)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, d.Metadata.AffectedLines)
	assert.Equal(t, "2024-02-12 10:15:20", d.Metadata.TimeRange.First)
	assert.Equal(t, "2024-02-12 10:15:24", d.Metadata.TimeRange.Last)

	// five matches is not a burst: the bonus needs more than five
	assert.Equal(t, 75, d.RiskScore)
	assert.Equal(t, severity.High, d.Severity)
}

func TestParse_BurstBonus(t *testing.T) {
	e := newTestEngine(t)

	result := e.Parse(bruteForceLines(6), "auth.log")

	require.Len(t, result.Detections, 1)
	assert.Equal(t, 85, result.Detections[0].RiskScore)
	assert.Equal(t, severity.High, result.Detections[0].Severity)
}

func TestParse_NoBurstWhenSpread(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 40))

	var b strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "2024-02-12T%02d:00:00Z hit\n", i)
	}
	result := e.Parse(b.String(), "spread.log")

	require.Len(t, result.Detections, 1)
	assert.Equal(t, 40, result.Detections[0].RiskScore)
	assert.Equal(t, severity.Low, result.Detections[0].Severity)
}

func TestParse_FrequencyBonuses(t *testing.T) {
	tests := []struct {
		name    string
		matches int
		want    int
	}{
		{"ten matches", 10, 20},
		{"eleven matches", 11, 30},
		{"fifty one matches", 51, 40},
		{"hundred and one matches", 101, 50},
		{"hundred and fifty matches", 150, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, testRule("hit", "hit", 20))

			var b strings.Builder
			for i := 0; i < tt.matches; i++ {
				// one hour apart so the burst bonus never applies
				ts := fixedNow.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339)
				fmt.Fprintf(&b, "%s hit\n", ts)
			}
			result := e.Parse(b.String(), "freq.log")

			require.Len(t, result.Detections, 1)
			assert.Equal(t, tt.want, result.Detections[0].RiskScore)
			assert.Equal(t, severity.FromScore(tt.want), result.Detections[0].Severity)
		})
	}
}

func TestParse_FallbackTimestampsCountAsBurst(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 50))

	result := e.Parse(strings.Repeat("hit without time\n", 11), "plain.log")

	require.Len(t, result.Detections, 1)
	d := result.Detections[0]
	assert.Equal(t, "2024-02-12T12:00:00.000Z", d.Metadata.TimeRange.First)
	// base 50, +10 frequency, +10 burst
	assert.Equal(t, 70, d.RiskScore)
	assert.Equal(t, severity.High, d.Severity)
}

func TestParse_ScoreIsClamped(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 95))

	var b strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "hit from 10.0.%d.%d\n", i/250, i%250)
	}
	result := e.Parse(b.String(), "loud.log")

	require.Len(t, result.Detections, 1)
	assert.Equal(t, 100, result.Detections[0].RiskScore)
	assert.Equal(t, severity.Critical, result.Detections[0].Severity)
}

func TestParse_SparseResult(t *testing.T) {
	e := newTestEngine(t,
		testRule("alpha", "alpha", 30),
		testRule("beta", "beta", 30),
		testRule("gamma", "gamma", 30),
	)

	result := e.Parse("ALPHA one\n\n   \ngamma two\nalpha three\n", "sparse.log")

	assert.Equal(t, 3, result.TotalLines)
	require.Len(t, result.Detections, 2)
	assert.Equal(t, "alpha", result.Detections[0].Rule.ID)
	assert.Equal(t, []int{1, 3}, result.Detections[0].Metadata.AffectedLines)
	assert.Equal(t, "gamma", result.Detections[1].Rule.ID)
	assert.Equal(t, []int{2}, result.Detections[1].Metadata.AffectedLines)
}

func TestParse_OneMatchPerLine(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 30))

	result := e.Parse("hit hit hit\n", "dup.log")

	require.Len(t, result.Detections, 1)
	assert.Len(t, result.Detections[0].Matches, 1)
}

func TestParse_NewlineConventions(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 30))

	result := e.Parse("hit a\r\nhit b\rhit c\n\r\nhit d", "mixed.log")

	assert.Equal(t, 4, result.TotalLines)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, result.Detections[0].Metadata.AffectedLines)
	assert.Equal(t, "hit d", result.Detections[0].Matches[3].RawLine)
}

func TestParse_EmptyContent(t *testing.T) {
	e := newTestEngine(t)

	result := e.Parse("", "empty.log")

	assert.Equal(t, 0, result.TotalLines)
	assert.Empty(t, result.Detections)
	assert.NotNil(t, result.Detections)
}

func TestParse_TopIPs(t *testing.T) {
	e := newTestEngine(t, testRule("conn", "conn", 30))

	lines := []string{
		"conn 10.0.0.3",
		"conn 10.0.0.1",
		"conn 10.0.0.2 10.0.0.2",
		"conn 10.0.0.1",
		"conn 10.0.0.4",
	}
	result := e.Parse(strings.Join(lines, "\n"), "ips.log")

	require.Len(t, result.Detections, 1)
	meta := result.Detections[0].Metadata
	assert.Equal(t, 4, meta.UniqueIPs)
	assert.Equal(t, []IPCount{
		{IP: "10.0.0.1", Count: 2},
		{IP: "10.0.0.2", Count: 2},
		{IP: "10.0.0.3", Count: 1},
		{IP: "10.0.0.4", Count: 1},
	}, meta.TopIPs)
}

func TestParse_TopIPsCappedAndDiversityBonus(t *testing.T) {
	e := newTestEngine(t, testRule("conn", "conn", 30))

	var b strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "2024-02-12T0%d:00:00Z conn from 192.0.2.%d\n", i%10, i)
	}
	result := e.Parse(b.String(), "many.log")

	require.Len(t, result.Detections, 1)
	d := result.Detections[0]
	assert.Equal(t, 12, d.Metadata.UniqueIPs)
	require.Len(t, d.Metadata.TopIPs, 10)
	assert.Equal(t, "192.0.2.1", d.Metadata.TopIPs[0].IP)
	assert.Equal(t, "192.0.2.10", d.Metadata.TopIPs[9].IP)
	// +10 frequency, +5 diversity; timestamps span nine hours
	assert.Equal(t, 45, d.RiskScore)
}

func TestParse_TimeRangeFollowsEncounterOrder(t *testing.T) {
	e := newTestEngine(t, testRule("hit", "hit", 30))

	content := "2024-02-12T10:00:00Z hit\n2024-02-12T08:00:00Z hit\n2024-02-12T09:00:00Z hit\n"
	result := e.Parse(content, "order.log")

	require.Len(t, result.Detections, 1)
	assert.Equal(t, TimeRange{First: "2024-02-12T10:00:00Z", Last: "2024-02-12T09:00:00Z"}, result.Detections[0].Metadata.TimeRange)
}

func TestParse_TotalBytes(t *testing.T) {
	e := newTestEngine(t)

	content := "2024-02-12T10:00:00Z large outbound transfer of 150 MB to 198.51.100.9\n" +
		"2024-02-12T10:05:00Z large outbound transfer of 50 MB to 198.51.100.9\n"
	result := e.Parse(content, "egress.log")

	require.Len(t, result.Detections, 1)
	d := result.Detections[0]
	assert.Equal(t, "data-exfiltration", d.Rule.ID)
	assert.Equal(t, int64(200<<20), d.Metadata.TotalBytes)
	require.NotNil(t, d.Matches[0].ExtractedData.DataSize)
	assert.Equal(t, int64(150<<20), *d.Matches[0].ExtractedData.DataSize)
}

func TestParse_TotalBytesSaturates(t *testing.T) {
	e := newTestEngine(t)

	content := "2024-02-12T10:00:00Z large outbound transfer of 8000000 TB to 198.51.100.9\n" +
		"2024-02-12T10:05:00Z large outbound transfer of 8000000 TB to 198.51.100.9\n"
	result := e.Parse(content, "egress.log")

	require.Len(t, result.Detections, 1)
	d := result.Detections[0]
	assert.Equal(t, "data-exfiltration", d.Rule.ID)
	assert.Equal(t, int64(math.MaxInt64), d.Metadata.TotalBytes)
	require.NotNil(t, d.Matches[0].ExtractedData.DataSize)
	assert.Equal(t, int64(math.MaxInt64), *d.Matches[0].ExtractedData.DataSize)
}

func TestParse_Deterministic(t *testing.T) {
	e := newTestEngine(t)

	content := bruteForceLines(7) +
		"2024-02-12T10:20:00Z GET /products?id=1 UNION SELECT password FROM users from 198.51.100.23\n" +
		"Feb 12 10:21:00 web kernel: possible port scan from 198.51.100.23\n"

	first := e.Parse(content, "mixed.log")
	second := e.Parse(content, "mixed.log")

	assert.Equal(t, first, second)
	assert.Len(t, first.Detections, 3)
}

func TestParse_SeverityAlwaysAgreesWithScore(t *testing.T) {
	e := newTestEngine(t)

	content := bruteForceLines(12) +
		"[12/Feb/2024:10:15:23 +0000] GET /../../etc/passwd from 198.51.100.1\n" +
		"ClamAV: Trojan.Generic FOUND in /tmp/x\n" +
		"[UFW BLOCK] IN=eth0 SRC=203.0.113.5\n"

	result := e.Parse(content, "all.log")

	require.NotEmpty(t, result.Detections)
	for _, d := range result.Detections {
		assert.GreaterOrEqual(t, d.RiskScore, 0)
		assert.LessOrEqual(t, d.RiskScore, 100)
		assert.Equal(t, severity.FromScore(d.RiskScore), d.Severity, d.Rule.ID)
		assert.LessOrEqual(t, len(d.Metadata.TopIPs), 10)
	}
}

func TestTotalMatches(t *testing.T) {
	e := newTestEngine(t, testRule("a", "alpha", 30), testRule("b", "beta", 30))

	result := e.Parse("alpha\nbeta\nalpha beta\n", "count.log")

	assert.Equal(t, 4, result.TotalMatches())
}
