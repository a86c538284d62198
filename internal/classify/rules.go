package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk shape of rules/categories.yaml.
type RulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a rules file. An empty rule list yields the built-in rules.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}

	var f RulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	if len(f.Rules) == 0 {
		return DefaultRules(), nil
	}

	for i, r := range f.Rules {
		if !r.Category.Valid() {
			return nil, fmt.Errorf("rule %d: unknown category %q", i+1, r.Category)
		}
		if len(r.Keywords) == 0 && len(r.Words) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i+1, r.Category)
		}
	}
	return f.Rules, nil
}

// SaveRules writes rules to a YAML file.
func SaveRules(path string, rules []Rule) error {
	data, err := yaml.Marshal(RulesFile{Rules: rules})
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// Load returns a Classifier built from the rules file at path.
func Load(path string) (*Classifier, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}
