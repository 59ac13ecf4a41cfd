package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

// CutoffDefault selects the start of the current quarter as the backlog cutoff.
const CutoffDefault = "default"

// DefaultResolvedStatus is the status that marks an item as done.
const DefaultResolvedStatus = "resolved"

// Tags are the global category ids with special meaning in every scope.
// Zero means the tag is not configured.
type Tags struct {
	NewFunctionality int64 `yaml:"new_functionality"`
	Maintenance      int64 `yaml:"maintenance"`
	ParentCategory   int64 `yaml:"parent_category"`
	Epic             int64 `yaml:"epic"`
}

// IDs returns the configured tag ids.
func (t Tags) IDs() []int64 {
	var ids []int64
	for _, id := range []int64{t.NewFunctionality, t.Maintenance, t.ParentCategory, t.Epic} {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Scope is one reporting configuration: which projects it covers and how
// items are mapped to report categories.
type Scope struct {
	Name                  string               `yaml:"-"`
	Title                 string               `yaml:"title"`
	BacklogResolvedCutoff string               `yaml:"backlog_resolved_cutoff"`
	StartDate             string               `yaml:"start_date"`
	ResolvedStatus        string               `yaml:"resolved_status"`
	Projects              []int64              `yaml:"projects"`
	Rules                 []model.CategoryRule `yaml:"rules"`
	Tags                  Tags                 `yaml:"tags"`
	DefaultPoints         int                  `yaml:"default_points"`
	RetroactiveCategories bool                 `yaml:"retroactive_categories"`
	RetroactivePoints     bool                 `yaml:"retroactive_points"`
}

// LoadScope reads <dir>/<name>.yaml.
func LoadScope(dir, name string) (*Scope, error) {
	path, err := ScopePath(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: scope file %s", common.ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scope file: %w", err)
	}
	return ParseScope(name, data)
}

// ParseScope decodes a scope file and validates it.
func ParseScope(name string, data []byte) (*Scope, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	scope := &Scope{}
	if err := dec.Decode(scope); err != nil {
		return nil, fmt.Errorf("%w: scope %s: %w", common.ErrInvalidConfig, name, err)
	}
	scope.Name = name
	scope.applyDefaults()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return scope, nil
}

// applyDefaults numbers rules without an order after the highest explicit
// order, keeping their list order.
func (s *Scope) applyDefaults() {
	if s.ResolvedStatus == "" {
		s.ResolvedStatus = DefaultResolvedStatus
	}
	next := 0
	for _, rule := range s.Rules {
		next = max(next, rule.Order)
	}
	for i := range s.Rules {
		s.Rules[i].Scope = s.Name
		if s.Rules[i].Order == 0 {
			next++
			s.Rules[i].Order = next
		}
	}
}

// Validate checks required fields and date formats.
func (s *Scope) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: scope name", common.ErrMissingConfig)
	}
	if len(s.Projects) == 0 {
		return fmt.Errorf("%w: scope %s has no projects", common.ErrMissingConfig, s.Name)
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("%w: scope %s has no rules", common.ErrMissingConfig, s.Name)
	}
	if s.DefaultPoints < 0 {
		return fmt.Errorf("%w: scope %s default_points is negative", common.ErrInvalidConfig, s.Name)
	}
	if s.StartDate != "" {
		if _, err := model.ParseDay(s.StartDate); err != nil {
			return fmt.Errorf("%w: scope %s start_date: %w", common.ErrInvalidConfig, s.Name, err)
		}
	}
	if s.BacklogResolvedCutoff != "" && s.BacklogResolvedCutoff != CutoffDefault {
		if _, err := model.ParseDay(s.BacklogResolvedCutoff); err != nil {
			return fmt.Errorf("%w: scope %s backlog_resolved_cutoff: %w", common.ErrInvalidConfig, s.Name, err)
		}
	}

	seen := make(map[int]bool, len(s.Rules))
	for _, rule := range s.Rules {
		if rule.Order < 1 {
			return fmt.Errorf("%w: scope %s rule order %d is not positive", common.ErrInvalidConfig, s.Name, rule.Order)
		}
		if seen[rule.Order] {
			return fmt.Errorf("%w: scope %s has two rules with order %d", common.ErrInvalidConfig, s.Name, rule.Order)
		}
		seen[rule.Order] = true
	}
	return nil
}

// Categories returns the projects plus the configured tags, without duplicates.
func (s *Scope) Categories() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, id := range append(append([]int64{}, s.Projects...), s.Tags.IDs()...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Cutoff resolves the backlog cutoff day. ok is false when none is configured.
func (s *Scope) Cutoff(now time.Time) (day time.Time, ok bool) {
	switch s.BacklogResolvedCutoff {
	case "":
		return time.Time{}, false
	case CutoffDefault:
		return model.StartOfQuarter(now), true
	}
	day, err := model.ParseDay(s.BacklogResolvedCutoff)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Start returns the configured first day. ok is false when none is configured.
func (s *Scope) Start() (day time.Time, ok bool) {
	if s.StartDate == "" {
		return time.Time{}, false
	}
	day, err := model.ParseDay(s.StartDate)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
