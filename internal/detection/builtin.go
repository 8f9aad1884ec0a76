package detection

// builtinRules is the compiled-in rule table. Patterns are RE2, so none of
// them can backtrack catastrophically.
var builtinRules = []Rule{
	{
		ID:            "brute-force-ssh",
		Name:          "SSH Brute Force Attack",
		Description:   "Repeated failed SSH authentication attempts indicating password guessing",
		Pattern:       `failed password for .+ from|authentication failure.*rhost=|invalid user \S+ from`,
		Severity:      "high",
		BaseRiskScore: 75,
		Category:      "Credential Access",
		MITREAttack:   []string{"T1110", "T1110.001"},
		RecommendedActions: []string{
			"Block offending source IPs at the firewall",
			"Enforce key-based SSH authentication",
			"Enable fail2ban or equivalent rate limiting",
			"Review targeted accounts for compromise",
		},
	},
	{
		ID:            "sql-injection",
		Name:          "SQL Injection Attempt",
		Description:   "Request parameters containing SQL injection payloads",
		Pattern:       `union(\s|%20|\+)+(all(\s|%20|\+)+)?select|'\s*or\s*'?1'?\s*=\s*'?1|\bor\s+1\s*=\s*1\b|;\s*drop\s+table|information_schema|sleep\(\s*\d+\s*\)|benchmark\(|%27(\s|%20|\+)*or`,
		Severity:      "high",
		BaseRiskScore: 80,
		Category:      "Initial Access",
		MITREAttack:   []string{"T1190"},
		RecommendedActions: []string{
			"Block the source IP at the WAF",
			"Verify parameterized queries in the targeted endpoint",
			"Review database logs for successful exploitation",
		},
	},
	{
		ID:            "xss-attempt",
		Name:          "Cross-Site Scripting Attempt",
		Description:   "Script injection payloads in request data",
		Pattern:       `<script|%3cscript|javascript:|onerror\s*=|onload\s*=|document\.cookie`,
		Severity:      "medium",
		BaseRiskScore: 60,
		Category:      "Initial Access",
		MITREAttack:   []string{"T1059.007", "T1189"},
		RecommendedActions: []string{
			"Enable output encoding on the affected endpoint",
			"Deploy a Content-Security-Policy header",
			"Block the source at the WAF",
		},
	},
	{
		ID:            "path-traversal",
		Name:          "Path Traversal Attempt",
		Description:   "Directory traversal sequences targeting files outside the web root",
		Pattern:       `\.\./|\.\.\\|%2e%2e(%2f|%5c|/)|/etc/passwd|/etc/shadow|c:\\windows\\system32`,
		Severity:      "high",
		BaseRiskScore: 70,
		Category:      "Discovery",
		MITREAttack:   []string{"T1083"},
		RecommendedActions: []string{
			"Canonicalize and validate file path parameters",
			"Block the source IP",
			"Confirm no sensitive files were served",
		},
	},
	{
		ID:            "command-injection",
		Name:          "Command Injection Attempt",
		Description:   "Shell metacharacters chaining system commands in request data",
		Pattern:       `(;|\||&&|%3b|%7c)\s*(cat|wget|curl|nc|ncat|bash|sh|python|perl|chmod|rm)\s|\$\((whoami|id|uname)`,
		Severity:      "critical",
		BaseRiskScore: 85,
		Category:      "Execution",
		MITREAttack:   []string{"T1059", "T1059.004"},
		RecommendedActions: []string{
			"Isolate the affected host",
			"Audit process execution on the target",
			"Patch the vulnerable input handler",
			"Block the source IP",
		},
	},
	{
		ID:            "port-scan",
		Name:          "Port Scan Detected",
		Description:   "Network reconnaissance probing multiple ports",
		Pattern:       `port\s*scan|nmap|masscan|syn\s+scan|possible\s+scan`,
		Severity:      "medium",
		BaseRiskScore: 55,
		Category:      "Discovery",
		MITREAttack:   []string{"T1046"},
		RecommendedActions: []string{
			"Rate-limit or block the scanning source",
			"Verify exposed services are intended",
		},
	},
	{
		ID:            "privilege-escalation",
		Name:          "Privilege Escalation Attempt",
		Description:   "Failed or suspicious attempts to obtain elevated privileges",
		Pattern:       `sudo:.*(incorrect password|not in sudoers)|su:.*authentication failure|privilege escalation|setuid\(0\)`,
		Severity:      "high",
		BaseRiskScore: 75,
		Category:      "Privilege Escalation",
		MITREAttack:   []string{"T1068", "T1548"},
		RecommendedActions: []string{
			"Review sudoers configuration",
			"Audit the account's recent activity",
			"Reset credentials if compromise is suspected",
		},
	},
	{
		ID:            "malware-detected",
		Name:          "Malware Detected",
		Description:   "Endpoint or gateway reported a malware signature",
		Pattern:       `malware|trojan|ransomware|virus\s+(found|detected)|backdoor|mimikatz|cobalt\s*strike`,
		Severity:      "critical",
		BaseRiskScore: 90,
		Category:      "Execution",
		MITREAttack:   []string{"T1204", "T1486"},
		RecommendedActions: []string{
			"Isolate the infected host from the network",
			"Collect memory and disk images",
			"Run a full antimalware scan",
			"Rotate credentials used on the host",
		},
	},
	{
		ID:            "data-exfiltration",
		Name:          "Data Exfiltration Attempt",
		Description:   "Unusually large or suspicious outbound data transfers",
		Pattern:       `exfiltrat|large\s+(outbound|data)\s+transfer|outbound\s+transfer|upload(ed)?\s+\d+(\.\d+)?\s*(mb|gb|tb)\b`,
		Severity:      "high",
		BaseRiskScore: 75,
		Category:      "Exfiltration",
		MITREAttack:   []string{"T1041", "T1048"},
		RecommendedActions: []string{
			"Block the destination at the egress proxy",
			"Identify the data that left the network",
			"Preserve flow logs for forensics",
		},
	},
	{
		ID:            "ddos-attack",
		Name:          "DDoS Attack",
		Description:   "Traffic flood or service exhaustion indicators",
		Pattern:       `ddos|syn\s+flood|flood(ing)?\s+detected|rate\s+limit\s+exceeded|too\s+many\s+requests`,
		Severity:      "high",
		BaseRiskScore: 70,
		Category:      "Impact",
		MITREAttack:   []string{"T1498", "T1499"},
		RecommendedActions: []string{
			"Enable upstream DDoS mitigation",
			"Apply rate limiting at the edge",
			"Scale affected services",
		},
	},
	{
		ID:            "scanner-user-agent",
		Name:          "Vulnerability Scanner Activity",
		Description:   "Requests carrying user agents of known offensive scanners",
		Pattern:       `sqlmap|nikto|nessus|dirbuster|gobuster|wpscan|hydra|acunetix`,
		Severity:      "medium",
		BaseRiskScore: 50,
		Category:      "Reconnaissance",
		MITREAttack:   []string{"T1595", "T1595.002"},
		RecommendedActions: []string{
			"Block the scanner source IP",
			"Confirm whether the scan was authorized",
		},
	},
	{
		ID:            "account-lockout",
		Name:          "Account Lockout",
		Description:   "Accounts locked after repeated authentication failures",
		Pattern:       `account\s+(is\s+)?locked|account\s+lockout|too\s+many\s+failed\s+(login|authentication)\s+attempts`,
		Severity:      "medium",
		BaseRiskScore: 50,
		Category:      "Credential Access",
		MITREAttack:   []string{"T1110"},
		RecommendedActions: []string{
			"Contact the account owner",
			"Correlate with brute force detections",
		},
	},
	{
		ID:            "unauthorized-access",
		Name:          "Unauthorized Access",
		Description:   "Requests rejected for missing or insufficient authorization",
		Pattern:       `unauthorized|access\s+denied|permission\s+denied|403\s+forbidden|"\s401\s`,
		Severity:      "low",
		BaseRiskScore: 35,
		Category:      "Defense Evasion",
		MITREAttack:   []string{"T1078"},
		RecommendedActions: []string{
			"Review the requesting identity",
			"Check for credential misuse",
		},
	},
	{
		ID:            "firewall-block",
		Name:          "Firewall Block",
		Description:   "Traffic dropped by host or network firewall",
		Pattern:       `\[ufw block\]|firewall.*(blocked|dropped|denied)|iptables.*drop`,
		Severity:      "info",
		BaseRiskScore: 20,
		Category:      "Network",
		MITREAttack:   nil,
		RecommendedActions: []string{
			"No action required unless volume is anomalous",
		},
	},
}

var defaultRuleSet = MustRuleSet(builtinRules)

// DefaultRules returns the compiled-in rule table.
func DefaultRules() RuleSet {
	return defaultRuleSet
}
