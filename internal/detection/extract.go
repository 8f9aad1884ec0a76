package detection

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	isoPattern    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	apachePattern = regexp.MustCompile(`\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2}(?: [+-]\d{4})?`)
	syslogPattern = regexp.MustCompile(`[A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2}`)

	dataSizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(bytes|kb|mb|gb|tb)\b`)
)

// fallbackLayout renders the wall-clock fallback with millisecond precision.
const fallbackLayout = "2006-01-02T15:04:05.000Z07:00"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
}

var apacheLayouts = []string{
	"02/Jan/2006:15:04:05 -0700",
	"02/Jan/2006:15:04:05",
}

var sizeMultipliers = map[string]float64{
	"bytes": 1,
	"kb":    1 << 10,
	"mb":    1 << 20,
	"gb":    1 << 30,
	"tb":    1 << 40,
}

func extractIPs(line string) []string {
	return ipv4Pattern.FindAllString(line, -1)
}

// extractTimestamp returns the first timestamp found in line, trying ISO-8601,
// then Apache, then syslog. When nothing matches it falls back to now.
func extractTimestamp(line string, now time.Time) string {
	for _, re := range []*regexp.Regexp{isoPattern, apachePattern, syslogPattern} {
		if ts := re.FindString(line); ts != "" {
			return ts
		}
	}
	return now.UTC().Format(fallbackLayout)
}

// parseTimestamp turns an extracted timestamp back into a time. Syslog stamps
// carry no year, so ref supplies it.
func parseTimestamp(ts string, ref time.Time) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(fallbackLayout, ts); err == nil {
		return t, true
	}

	normalized := strings.Replace(ts, " ", "T", 1)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, true
		}
	}
	for _, layout := range apacheLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}

	fields := strings.Fields(ts)
	if len(fields) == 3 {
		compact := strings.Join(fields, " ")
		if t, err := time.Parse("Jan 2 15:04:05", compact); err == nil {
			return t.AddDate(ref.UTC().Year(), 0, 0), true
		}
	}
	return time.Time{}, false
}

// extractDataSize parses the first "<number> <unit>" in line into bytes.
// Sizes beyond math.MaxInt64 bytes saturate.
func extractDataSize(line string) (int64, bool) {
	m := dataSizePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	mult, ok := sizeMultipliers[strings.ToLower(m[2])]
	if !ok {
		return 0, false
	}
	size := math.Round(value * mult)
	if size >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(size), true
}

// addBytes adds two non-negative sizes, saturating at math.MaxInt64.
func addBytes(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
