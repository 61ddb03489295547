package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads an ordered rule set from a YAML file. Declaration order in the
// file is the evaluation order.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a rule set from YAML bytes.
func Parse(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return f.Rules, nil
}

// LoadMatcher loads a rule file and builds a validated matcher from it.
func LoadMatcher(path string) (*Matcher, error) {
	rules, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewMatcher(rules)
}
