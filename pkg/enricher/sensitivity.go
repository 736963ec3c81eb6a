package enricher

import (
	"fmt"
	"os"
	"strings"

	"github.com/veridian/vanguard/pkg/types"
	"gopkg.in/yaml.v3"
)

// SensitivityRule classifies resources declaratively: every non-empty
// criterion must match. Rules are evaluated in order; the first match wins.
type SensitivityRule struct {
	ResourceType   string `yaml:"resource_type"`
	Service        string `yaml:"service"`
	EndpointPrefix string `yaml:"endpoint_prefix"`
	Level          int    `yaml:"level"`
}

// defaultSensitivityRules ship a conservative baseline; deployments load
// their own table from YAML.
var defaultSensitivityRules = []SensitivityRule{
	{EndpointPrefix: "/admin", Level: 5},
	{Service: "iam", Level: 5},
	{Service: "kms", Level: 5},
	{Service: "secretsmanager", Level: 5},
	{EndpointPrefix: "/auth", Level: 4},
	{Service: "s3", Level: 4},
	{EndpointPrefix: "/api/users", Level: 3},
	{ResourceType: "application", Level: 3},
	{ResourceType: "cloud_resource", Level: 2},
	{ResourceType: "api_endpoint", Level: 2},
}

// Classifier assigns a sensitivity level in [1,5] to a resource context.
type Classifier struct {
	rules []SensitivityRule
}

// NewClassifier validates and wraps a rule set.
func NewClassifier(rules []SensitivityRule) (*Classifier, error) {
	for i, r := range rules {
		if r.Level < 1 || r.Level > 5 {
			return nil, fmt.Errorf("sensitivity rule %d: level %d out of range [1,5]", i, r.Level)
		}
	}
	return &Classifier{rules: rules}, nil
}

// LoadClassifier reads a YAML rule table; an empty path yields the built-in
// defaults.
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return NewClassifier(defaultSensitivityRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sensitivity rules: %w", err)
	}
	var rules []SensitivityRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse sensitivity rules: %w", err)
	}
	return NewClassifier(rules)
}

// Classify returns the level of the first matching rule, or 1 when no rule
// matches.
func (c *Classifier) Classify(res *types.ResourceContext) int {
	for _, r := range c.rules {
		if r.ResourceType != "" && r.ResourceType != res.Type {
			continue
		}
		if r.Service != "" && !strings.EqualFold(r.Service, res.Service) {
			continue
		}
		if r.EndpointPrefix != "" && !strings.HasPrefix(res.Endpoint, r.EndpointPrefix) {
			continue
		}
		return r.Level
	}
	return 1
}
