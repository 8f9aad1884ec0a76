package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

func TestNewRuleSet_Validation(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr string
	}{
		{"empty", nil, "rule set is empty"},
		{"missing id", []Rule{{Name: "x", Pattern: "x", Severity: "low"}}, "ID"},
		{"bad severity", []Rule{{ID: "x", Name: "x", Pattern: "x", Severity: "urgent"}}, "Severity"},
		{"score out of range", []Rule{{ID: "x", Name: "x", Pattern: "x", Severity: "low", BaseRiskScore: 101}}, "BaseRiskScore"},
		{"blank action", []Rule{{ID: "x", Name: "x", Pattern: "x", Severity: "low", RecommendedActions: []string{""}}}, "RecommendedActions"},
		{"bad pattern", []Rule{{ID: "x", Name: "x", Pattern: "(", Severity: "low"}}, "invalid pattern"},
		{
			"duplicate id",
			[]Rule{
				{ID: "x", Name: "x", Pattern: "x", Severity: "low"},
				{ID: "x", Name: "y", Pattern: "y", Severity: "low"},
			},
			`duplicate rule id "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.rules)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRuleSet_CaseInsensitive(t *testing.T) {
	rs, err := NewRuleSet([]Rule{{ID: "x", Name: "x", Pattern: "failed password", Severity: "high"}})
	require.NoError(t, err)

	r, ok := rs.Get("x")
	require.True(t, ok)
	assert.True(t, r.Match("FAILED PASSWORD for root"))
	assert.False(t, r.Match("accepted password"))
	assert.Equal(t, severity.High, r.StaticSeverity())
}

func TestNewRuleSet_CopiesInput(t *testing.T) {
	input := []Rule{{ID: "x", Name: "x", Pattern: "x", Severity: "low", MITREAttack: []string{"T1110"}}}
	rs, err := NewRuleSet(input)
	require.NoError(t, err)

	input[0].Name = "changed"
	input[0].MITREAttack[0] = "T0000"

	r, _ := rs.Get("x")
	assert.Equal(t, "x", r.Name)
	assert.Equal(t, []string{"T1110"}, r.MITREAttack)
}

func TestRuleSet_RulesReturnsCopy(t *testing.T) {
	rs := DefaultRules()
	rules := rs.Rules()
	rules[0] = nil

	assert.NotNil(t, rs.Rules()[0])
}

func TestDefaultRules(t *testing.T) {
	rs := DefaultRules()
	assert.Equal(t, 14, rs.Len())

	samples := map[string]string{
		"brute-force-ssh":      "2024-02-12 10:15:23 [AUTH] Failed password for admin from 203.0.113.45 port 22",
		"sql-injection":        "GET /products?id=1 UNION SELECT username,password FROM users",
		"xss-attempt":          "GET /search?q=<script>alert(1)</script>",
		"path-traversal":       "GET /static/../../etc/passwd HTTP/1.1",
		"command-injection":    "GET /ping?host=127.0.0.1; cat /etc/hosts",
		"port-scan":            "kernel: Possible port scan detected from 198.51.100.7",
		"privilege-escalation": "sudo: bob : user NOT in sudoers ; TTY=pts/0",
		"malware-detected":     "ClamAV: Trojan.Generic FOUND in /tmp/payload",
		"data-exfiltration":    "Large outbound transfer of 512 MB to 198.51.100.9",
		"ddos-attack":          "SYN flood detected on eth0",
		"scanner-user-agent":   `"GET / HTTP/1.1" 200 "sqlmap/1.7.2#stable"`,
		"account-lockout":      "Account locked for user alice after failures",
		"unauthorized-access":  "Unauthorized request to /admin rejected",
		"firewall-block":       "[UFW BLOCK] IN=eth0 SRC=203.0.113.5",
	}

	for _, r := range rs.Rules() {
		t.Run(r.ID, func(t *testing.T) {
			sample, ok := samples[r.ID]
			require.True(t, ok, "no sample for rule")
			assert.True(t, r.Match(sample))
			assert.NotEmpty(t, r.RecommendedActions)
			assert.True(t, severity.Valid(r.Severity))
		})
	}
}

func TestDefaultRules_SampleOnlyMatchesBruteForce(t *testing.T) {
	line := "2024-02-12 10:15:23 [AUTH] Failed password for admin from 203.0.113.45 port 22"

	var matched []string
	for _, r := range DefaultRules().Rules() {
		if r.Match(line) {
			matched = append(matched, r.ID)
		}
	}
	assert.Equal(t, []string{"brute-force-ssh"}, matched)
}

func TestLoadRuleSet(t *testing.T) {
	doc := `
rules:
  - id: custom-login
    name: Custom Login Failure
    description: login failures in the custom app
    pattern: 'login failed for \S+'
    severity: medium
    base_risk_score: 45
    category: Credential Access
    mitre_attack: [T1110]
    recommended_actions:
      - Review the account
`
	rs, err := LoadRuleSet(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	r, ok := rs.Get("custom-login")
	require.True(t, ok)
	assert.Equal(t, 45, r.BaseRiskScore)
	assert.Equal(t, []string{"T1110"}, r.MITREAttack)
	assert.True(t, r.Match("LOGIN FAILED for bob"))
}

func TestLoadRuleSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "rules:\n  - id: x\n    name: x\n    pattern: x\n    severity: low\n    weight: 3\n"},
		{"no rules", "rules: []\n"},
		{"invalid severity", "rules:\n  - id: x\n    name: x\n    pattern: x\n    severity: severe\n"},
		{"not yaml", "rules: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRuleSet(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRuleSetFile_Missing(t *testing.T) {
	_, err := LoadRuleSetFile("/nonexistent/rules.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open rule set")
}
