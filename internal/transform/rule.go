package transform

import (
	"fmt"
	"strings"
)

// Wildcard is the match value that matches any source value.
const Wildcard = "*"

// TargetRootBU is a replacement placeholder. Seeding swaps it for the target
// environment's root business unit id once that id is known.
const TargetRootBU = "$TARGET_ROOT_BU"

// Rule rewrites a matched value of (TargetType, TargetAttribute).
type Rule struct {
	TargetType      string `yaml:"target_type" json:"target_type"`
	TargetAttribute string `yaml:"target_attribute" json:"target_attribute"`
	MatchValue      string `yaml:"match_value" json:"match_value"`
	Replacement     string `yaml:"replacement,omitempty" json:"replacement,omitempty"`

	// ReplacementAttribute redirects the replacement into another attribute.
	// Empty means TargetAttribute.
	ReplacementAttribute string `yaml:"replacement_attribute,omitempty" json:"replacement_attribute,omitempty"`

	// ReplacementQuery computes Replacement from the target environment
	// before the first import.
	ReplacementQuery *Query `yaml:"replacement_query,omitempty" json:"replacement_query,omitempty"`
}

// Query selects exactly one target record and one of its columns.
type Query struct {
	Type   string            `yaml:"type" json:"type"`
	Where  map[string]string `yaml:"where,omitempty" json:"where,omitempty"`
	Column string            `yaml:"column" json:"column"`
}

// Attr returns the attribute the replacement is written to.
func (r Rule) Attr() string {
	if r.ReplacementAttribute != "" {
		return r.ReplacementAttribute
	}
	return r.TargetAttribute
}

// IsWildcard reports whether the rule matches any value.
func (r Rule) IsWildcard() bool {
	return r.MatchValue == Wildcard
}

// Validate checks the rule is usable.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.TargetType) == "" {
		return fmt.Errorf("rule: target_type is required")
	}
	if strings.TrimSpace(r.TargetAttribute) == "" {
		return fmt.Errorf("rule %s: target_attribute is required", r.TargetType)
	}
	if r.MatchValue == "" {
		return fmt.Errorf("rule %s.%s: match_value is required (use %q for any)", r.TargetType, r.TargetAttribute, Wildcard)
	}
	if r.Replacement == "" && r.ReplacementQuery == nil {
		return fmt.Errorf("rule %s.%s: replacement or replacement_query is required", r.TargetType, r.TargetAttribute)
	}
	if r.Replacement != "" && r.ReplacementQuery != nil {
		return fmt.Errorf("rule %s.%s: replacement and replacement_query are exclusive", r.TargetType, r.TargetAttribute)
	}
	if q := r.ReplacementQuery; q != nil && (q.Type == "" || q.Column == "") {
		return fmt.Errorf("rule %s.%s: replacement_query needs type and column", r.TargetType, r.TargetAttribute)
	}
	return nil
}

func (r Rule) String() string {
	return fmt.Sprintf("(%s, %s, %s) -> %s.%s", r.TargetType, r.TargetAttribute, r.MatchValue, r.Attr(), r.Replacement)
}
