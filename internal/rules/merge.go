package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/burnup/internal/model"
)

// DayData is everything the rules read for one day.
type DayData struct {
	Day       time.Time
	Snapshots []model.Snapshot
	// Edges holds the active memberships among Program.Categories.
	Edges    map[int64]model.EdgeSet
	Children map[int64][]int64
	// Titles holds item titles of closure roots.
	Titles map[int64]string
}

// Evaluate assigns report categories for one day. Rules run top to bottom;
// an item keeps the first category it is assigned. Items no rule matches
// are left out of the result.
func (p *Program) Evaluate(day DayData) []model.ReportRow {
	closure := p.evaluateClosure(day)
	assigned := make(map[int64]model.ReportRow, len(day.Snapshots))

	for _, rule := range p.Rules() {
		for _, snap := range day.Snapshots {
			if _, done := assigned[snap.ItemID]; done {
				continue
			}
			title, ok := p.match(rule, snap, day.Edges[snap.ItemID], closure)
			if !ok {
				continue
			}
			assigned[snap.ItemID] = model.ReportRow{
				Snapshot:        snap,
				Category:        title,
				RuleOrder:       rule.Order,
				Display:         rule.Display,
				IncludeInStatus: rule.IncludeInStatus,
			}
		}
	}

	rows := make([]model.ReportRow, 0, len(assigned))
	for _, row := range assigned {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })
	return rows
}

func (p *Program) match(rule Rule, snap model.Snapshot, edges model.EdgeSet, closure map[int64]*closureHit) (string, bool) {
	switch rule.Kind {
	case model.RuleByID:
		return rule.Title, edges.Has(rule.IDs[0])
	case model.RuleIntersection:
		return rule.Title, len(edges) > 0 && edges.HasAll(rule.IDs)
	case model.RuleByColumn:
		ok := snap.CategoryID == rule.IDs[0] && strings.Contains(strings.ToLower(snap.Column), rule.Match)
		return rule.Title, ok
	case model.RuleByParentClosure:
		hit, ok := closure[snap.ItemID]
		if !ok || hit.order != rule.Order {
			return "", false
		}
		return hit.title(), true
	}
	return "", false
}
