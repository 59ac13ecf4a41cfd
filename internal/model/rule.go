package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRuleKind is returned for a rule kind outside the rule language.
var ErrUnknownRuleKind = errors.New("unknown rule kind")

// RuleKind selects how a categorization rule matches items.
type RuleKind string

// Rule kinds, evaluated in ascending rule order.
const (
	RuleByID            RuleKind = "ByID"
	RuleByName          RuleKind = "ByName"
	RuleByWildcard      RuleKind = "ByWildcard"
	RuleIntersection    RuleKind = "Intersection"
	RuleByColumn        RuleKind = "ByColumn"
	RuleByParentClosure RuleKind = "ByParentClosure"
)

var ruleKindAliases = map[string]RuleKind{
	"byid":               RuleByID,
	"projectbyid":        RuleByID,
	"byname":             RuleByName,
	"projectbyname":      RuleByName,
	"bywildcard":         RuleByWildcard,
	"projectsbywildcard": RuleByWildcard,
	"intersection":       RuleIntersection,
	"bycolumn":           RuleByColumn,
	"projectcolumn":      RuleByColumn,
	"byparentclosure":    RuleByParentClosure,
	"parenttask":         RuleByParentClosure,
}

// ParseRuleKind accepts the canonical kind names case-insensitively, plus the
// legacy recategorization file names (ProjectByID, ParentTask, ...).
func ParseRuleKind(s string) (RuleKind, error) {
	kind, ok := ruleKindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRuleKind, s)
	}
	return kind, nil
}

// IsFlat reports whether the kind is decided from one item's own data.
func (k RuleKind) IsFlat() bool {
	return k != RuleByParentClosure
}

// CategoryRule maps items to a report category. Display defaults to true;
// hidden categories are still computed but flagged in the report feed.
// IncludeInStatus selects the categories of the status feed.
type CategoryRule struct {
	Display         *bool    `json:"display,omitempty" yaml:"display"`
	Scope           string   `json:"scope" yaml:"-"`
	Kind            RuleKind `json:"kind" yaml:"kind"`
	MatchString     string   `json:"match_string" yaml:"match"`
	Title           string   `json:"title" yaml:"title"`
	CategoryIDs     []int64  `json:"category_ids" yaml:"ids"`
	Order           int      `json:"order" yaml:"order"`
	IncludeInStatus bool     `json:"include_in_status" yaml:"include_in_status"`
}

// Displayed reports whether the rule's category is shown in reports.
func (r CategoryRule) Displayed() bool {
	return r.Display == nil || *r.Display
}

// UnmarshalText lets scope files name kinds by any accepted alias.
func (k *RuleKind) UnmarshalText(text []byte) error {
	parsed, err := ParseRuleKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
