package detection

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of a custom rule set:
//
//	rules:
//	  - id: brute-force-ssh
//	    name: SSH Brute Force Attack
//	    pattern: 'failed password for .+ from'
//	    severity: high
//	    base_risk_score: 75
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRuleSet decodes and compiles a YAML rule set.
func LoadRuleSet(r io.Reader) (RuleSet, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return RuleSet{}, fmt.Errorf("failed to decode rule set: %w", err)
	}
	return NewRuleSet(f.Rules)
}

// LoadRuleSetFile loads a YAML rule set from path.
func LoadRuleSetFile(path string) (RuleSet, error) {
	fh, err := os.Open(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to open rule set: %w", err)
	}
	defer fh.Close()

	return LoadRuleSet(fh)
}
