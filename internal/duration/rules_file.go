package duration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// rulesFile is the on-disk shape of a keyword table:
//
//	rules:
//	  - name: yearly
//	    days: 365
//	    keywords: ["12 tháng", "1 năm"]
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML keyword table.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decode duration rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: file has no rules", ErrInvalidRule)
	}
	return f.Rules, nil
}

// LoadRules reads a YAML keyword table from path.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read duration rules: %w", err)
	}
	return ParseRules(data)
}

// FromFile builds a resolver from path, or the default resolver when path is empty.
func FromFile(path string) (*Resolver, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return NewResolver(rules)
}
