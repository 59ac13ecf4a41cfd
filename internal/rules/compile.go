// Package rules maps reconstructed items to report categories using an
// ordered per-scope rule list.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

// Compile errors. All of them also match common.ErrInvalidConfig.
var (
	ErrUnknownRuleKind = model.ErrUnknownRuleKind
	ErrUnknownCategory = errors.New("unknown category")
	ErrRuleCardinality = errors.New("wrong number of category ids")
	ErrMissingMatch    = errors.New("rule needs a match string")
)

// Rule is a compiled rule. ByName and ByWildcard never appear here: they
// compile to ByID rules.
type Rule struct {
	Kind  model.RuleKind
	Title string
	Match string
	IDs   []int64
	Order int
	// Sub orders the ByID rules one wildcard expands to.
	Sub             int
	Display         bool
	IncludeInStatus bool
}

// Program is the compiled, ordered rule list of one scope.
type Program struct {
	catalog *model.Catalog
	scope   string
	flat    []Rule
	closure []Rule
}

func compileError(rule model.CategoryRule, err error, format string, args ...any) error {
	return fmt.Errorf("%w: rule %d (%s): %w: %s", common.ErrInvalidConfig, rule.Order, rule.Kind, err, fmt.Sprintf(format, args...))
}

// Compile validates rules against the category table and resolves names
// and wildcards to ids.
func Compile(scope string, rules []model.CategoryRule, catalog *model.Catalog) (*Program, error) {
	sorted := make([]model.CategoryRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	p := &Program{catalog: catalog, scope: scope}
	for _, rule := range sorted {
		compiled, err := compileRule(rule, catalog)
		if err != nil {
			return nil, err
		}
		for _, r := range compiled {
			r.Display = rule.Displayed()
			r.IncludeInStatus = rule.IncludeInStatus
			if r.Kind == model.RuleByParentClosure {
				p.closure = append(p.closure, r)
			} else {
				p.flat = append(p.flat, r)
			}
		}
	}

	slog.Debug("compiled category rules",
		"scope", scope,
		"flat", len(p.flat),
		"closure", len(p.closure))
	return p, nil
}

func compileRule(rule model.CategoryRule, catalog *model.Catalog) ([]Rule, error) {
	kind, err := model.ParseRuleKind(string(rule.Kind))
	if err != nil {
		return nil, fmt.Errorf("%w: rule %d: %w", common.ErrInvalidConfig, rule.Order, err)
	}
	rule.Kind = kind

	switch rule.Kind {
	case model.RuleByName:
		if len(rule.CategoryIDs) > 0 {
			return nil, compileError(rule, ErrRuleCardinality, "ids are resolved from the name")
		}
		if rule.MatchString == "" {
			return nil, compileError(rule, ErrMissingMatch, "name to resolve")
		}
		cat, ok := findByName(catalog, rule.MatchString)
		if !ok {
			return nil, compileError(rule, ErrUnknownCategory, "no category named %q", rule.MatchString)
		}
		return []Rule{{Kind: model.RuleByID, IDs: []int64{cat.ID}, Title: titleOr(rule.Title, cat.Name), Order: rule.Order}}, nil

	case model.RuleByWildcard:
		if len(rule.CategoryIDs) > 0 {
			return nil, compileError(rule, ErrRuleCardinality, "ids are resolved from the pattern")
		}
		if rule.MatchString == "" {
			return nil, compileError(rule, ErrMissingMatch, "name pattern")
		}
		needle := strings.ToLower(rule.MatchString)
		var out []Rule
		for _, cat := range catalog.CategoryList() {
			if strings.Contains(strings.ToLower(cat.Name), needle) {
				out = append(out, Rule{Kind: model.RuleByID, IDs: []int64{cat.ID}, Title: cat.Name, Order: rule.Order, Sub: len(out)})
			}
		}
		if len(out) == 0 {
			slog.Warn("wildcard rule matches no category", "order", rule.Order, "pattern", rule.MatchString)
		}
		return out, nil
	}

	switch {
	case len(rule.CategoryIDs) == 0:
		return nil, compileError(rule, ErrRuleCardinality, "no ids")
	case len(rule.CategoryIDs) > 1 && rule.Kind != model.RuleIntersection:
		return nil, compileError(rule, ErrRuleCardinality, "only Intersection may list several ids")
	}

	names := make([]string, 0, len(rule.CategoryIDs))
	for _, id := range rule.CategoryIDs {
		cat, ok := catalog.Category(id)
		if !ok {
			return nil, compileError(rule, ErrUnknownCategory, "id %d", id)
		}
		names = append(names, cat.Name)
	}

	compiled := Rule{Kind: rule.Kind, IDs: append([]int64(nil), rule.CategoryIDs...), Order: rule.Order, Title: rule.Title}
	switch rule.Kind {
	case model.RuleByID, model.RuleIntersection:
		compiled.Title = titleOr(rule.Title, strings.Join(names, " & "))
	case model.RuleByColumn:
		if rule.MatchString == "" {
			return nil, compileError(rule, ErrMissingMatch, "column name")
		}
		compiled.Match = strings.ToLower(rule.MatchString)
		compiled.Title = titleOr(rule.Title, rule.MatchString)
	}
	return []Rule{compiled}, nil
}

// findByName prefers an exact match, then a case-insensitive one. The
// category table is ordered by id, so ties go to the lowest id.
func findByName(catalog *model.Catalog, name string) (model.Category, bool) {
	for _, cat := range catalog.CategoryList() {
		if cat.Name == name {
			return cat, true
		}
	}
	for _, cat := range catalog.CategoryList() {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return model.Category{}, false
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

// Rules returns the compiled rules in evaluation order.
func (p *Program) Rules() []Rule {
	out := make([]Rule, 0, len(p.flat)+len(p.closure))
	out = append(out, p.flat...)
	out = append(out, p.closure...)
	sort.SliceStable(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// Categories returns every category id the program reads edges of.
func (p *Program) Categories() []int64 {
	set := model.NewEdgeSet()
	for _, r := range p.flat {
		if r.Kind == model.RuleByColumn {
			continue
		}
		for _, id := range r.IDs {
			set.Add(id)
		}
	}
	for _, r := range p.closure {
		set.Add(r.IDs[0])
	}
	return set.Sorted()
}

// HasClosure reports whether any rule needs the parent/child links.
func (p *Program) HasClosure() bool {
	return len(p.closure) > 0
}

func before(a, b Rule) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.Sub < b.Sub
}
