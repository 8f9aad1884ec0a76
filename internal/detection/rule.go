package detection

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/telhawk-systems/socdetect/internal/severity"
)

// Rule is a named pattern plus the severity, score and response template
// attached to every detection it produces. Rules are read-only once they are
// part of a RuleSet.
type Rule struct {
	ID                 string   `yaml:"id" json:"id" validate:"required"`
	Name               string   `yaml:"name" json:"name" validate:"required"`
	Description        string   `yaml:"description" json:"description"`
	Pattern            string   `yaml:"pattern" json:"pattern" validate:"required"`
	Severity           string   `yaml:"severity" json:"severity" validate:"required,oneof=critical high medium low info"`
	BaseRiskScore      int      `yaml:"base_risk_score" json:"base_risk_score" validate:"min=0,max=100"`
	Category           string   `yaml:"category" json:"category"`
	MITREAttack        []string `yaml:"mitre_attack" json:"mitre_attack" validate:"dive,required"`
	RecommendedActions []string `yaml:"recommended_actions" json:"recommended_actions" validate:"dive,required"`

	re *regexp.Regexp
}

// Match reports whether line matches the rule's pattern.
func (r *Rule) Match(line string) bool {
	return r.re != nil && r.re.MatchString(line)
}

// RuleSet is an immutable, ordered collection of compiled rules. Rule order
// only affects the order detections are reported in.
type RuleSet struct {
	rules []*Rule
	byID  map[string]*Rule
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewRuleSet validates and compiles rules. Patterns are always matched
// case-insensitively.
func NewRuleSet(rules []Rule) (RuleSet, error) {
	if len(rules) == 0 {
		return RuleSet{}, errors.New("rule set is empty")
	}

	rs := RuleSet{
		rules: make([]*Rule, 0, len(rules)),
		byID:  make(map[string]*Rule, len(rules)),
	}

	for i := range rules {
		r := rules[i]
		if err := validate.Struct(&r); err != nil {
			return RuleSet{}, fmt.Errorf("rule %d (%q): %w", i, r.ID, err)
		}
		if _, dup := rs.byID[r.ID]; dup {
			return RuleSet{}, fmt.Errorf("duplicate rule id %q", r.ID)
		}

		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return RuleSet{}, fmt.Errorf("rule %q: invalid pattern: %w", r.ID, err)
		}
		r.re = re
		r.MITREAttack = append([]string(nil), r.MITREAttack...)
		r.RecommendedActions = append([]string(nil), r.RecommendedActions...)

		rs.rules = append(rs.rules, &r)
		rs.byID[r.ID] = &r
	}

	return rs, nil
}

// MustRuleSet is NewRuleSet that panics on error; for compiled-in tables.
func MustRuleSet(rules []Rule) RuleSet {
	rs, err := NewRuleSet(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Rules returns the rules in table order. The slice is a copy.
func (rs RuleSet) Rules() []*Rule {
	return append([]*Rule(nil), rs.rules...)
}

// Get looks a rule up by ID.
func (rs RuleSet) Get(id string) (*Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// Len returns the number of rules.
func (rs RuleSet) Len() int {
	return len(rs.rules)
}

// StaticSeverity returns the rule's declared severity.
func (r *Rule) StaticSeverity() severity.Level {
	return severity.Level(r.Severity)
}
