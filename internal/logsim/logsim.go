// Package logsim generates synthetic log files containing attack traffic
// mixed with benign activity, for demos and end-to-end tests.
package logsim

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// TimestampLayout is the layout every generated line starts with.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	defaultCount      = 5
	defaultTimeSpread = 30 * time.Minute
)

// Config holds configuration for log generation.
type Config struct {
	// Events are placed in [Now-TimeSpread, Now].
	Now        time.Time
	TimeSpread time.Duration

	// Seed makes output reproducible; zero picks a random seed.
	Seed int64

	// Scenarios to include by name; empty means all of them.
	Scenarios []string

	// Count is the number of attack lines per scenario.
	Count int

	// Noise is the number of benign lines mixed in.
	Noise int
}

// Output is a generated log.
type Output struct {
	Lines []string
	// Counts maps scenario name to the number of lines it produced.
	Counts map[string]int
}

// String renders the log with one line per entry.
func (o *Output) String() string {
	if len(o.Lines) == 0 {
		return ""
	}
	return strings.Join(o.Lines, "\n") + "\n"
}

type entry struct {
	at   time.Time
	line string
}

type generator struct {
	faker  *gofakeit.Faker
	now    time.Time
	spread time.Duration
}

// Generate builds a log from cfg. Lines are ordered by timestamp.
func Generate(cfg Config) (*Output, error) {
	if cfg.Count <= 0 {
		cfg.Count = defaultCount
	}
	if cfg.TimeSpread <= 0 {
		cfg.TimeSpread = defaultTimeSpread
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	selected := Scenarios()
	if len(cfg.Scenarios) > 0 {
		selected = selected[:0:0]
		for _, name := range cfg.Scenarios {
			s, ok := Lookup(name)
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q (known: %s)", name, strings.Join(Names(), ", "))
			}
			selected = append(selected, s)
		}
	}

	g := &generator{
		faker:  gofakeit.New(cfg.Seed),
		now:    cfg.Now,
		spread: cfg.TimeSpread,
	}

	out := &Output{Counts: make(map[string]int, len(selected))}
	var entries []entry

	for _, s := range selected {
		// one attacker per scenario keeps the per-rule IP statistics realistic
		attacker := g.faker.IPv4Address()
		for i := 0; i < cfg.Count; i++ {
			at := g.timestamp()
			entries = append(entries, entry{at: at, line: g.stamp(at) + " " + s.line(g, attacker)})
		}
		out.Counts[s.Name] += cfg.Count
	}

	for i := 0; i < cfg.Noise; i++ {
		at := g.timestamp()
		entries = append(entries, entry{at: at, line: g.stamp(at) + " " + g.noiseLine()})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	out.Lines = make([]string, len(entries))
	for i, e := range entries {
		out.Lines[i] = e.line
	}
	return out, nil
}

func (g *generator) timestamp() time.Time {
	offset := time.Duration(g.faker.Int64()) % g.spread
	if offset < 0 {
		offset = -offset
	}
	return g.now.Add(-offset).Truncate(time.Second)
}

func (g *generator) stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (g *generator) pid() int {
	return g.faker.Number(1000, 65000)
}

func (g *generator) port() int {
	return g.faker.Number(1024, 65535)
}

var (
	benignPaths = []string{"index.html", "about", "static/app.js", "api/v1/health", "images/logo.png", "products/42"}
	benignUsers = []string{"deploy", "ci-runner", "backup"}
	targetUsers = []string{"admin", "root", "oracle", "ubuntu", "test"}
)

func (g *generator) noiseLine() string {
	switch g.faker.Number(0, 3) {
	case 0:
		return fmt.Sprintf(`nginx: %s - - "GET /%s HTTP/1.1" 200 %d`,
			g.faker.IPv4Address(), g.faker.RandomString(benignPaths), g.faker.Number(200, 40000))
	case 1:
		return fmt.Sprintf("sshd[%d]: Accepted publickey for %s from %s port %d ssh2",
			g.pid(), g.faker.RandomString(benignUsers), g.faker.IPv4Address(), g.port())
	case 2:
		return fmt.Sprintf("CRON[%d]: (root) CMD (/usr/local/bin/rotate-logs)", g.pid())
	default:
		return "systemd[1]: Started Daily apt upgrade and clean activities."
	}
}

// Names returns every scenario name in generation order.
func Names() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	return names
}

// Scenarios returns every scenario in generation order.
func Scenarios() []Scenario {
	return slices.Clone(scenarios)
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
