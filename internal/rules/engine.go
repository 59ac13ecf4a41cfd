package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

// Engine evaluates a compiled program against the event log.
type Engine struct {
	store   service.EventStore
	program *Program
}

// NewEngine creates an engine for program.
func NewEngine(store service.EventStore, program *Program) *Engine {
	return &Engine{store: store, program: program}
}

// Program returns the compiled rules.
func (e *Engine) Program() *Program {
	return e.program
}

// Assign categorizes one day's snapshot rows using the memberships and
// parent/child links known no later than day.
func (e *Engine) Assign(ctx context.Context, day time.Time, snapshots []model.Snapshot) ([]model.ReportRow, error) {
	asOf := model.AsOf(day)
	edges, err := e.store.ActiveEdges(ctx, e.program.Categories(), asOf)
	if err != nil {
		return nil, fmt.Errorf("rule edges on %s: %w", model.FormatDay(day), err)
	}

	data := DayData{Day: day, Snapshots: snapshots, Edges: edges}
	if e.program.HasClosure() {
		if data.Children, err = e.store.ChildLinks(ctx, asOf); err != nil {
			return nil, fmt.Errorf("links on %s: %w", model.FormatDay(day), err)
		}
		if data.Titles, err = e.rootTitles(ctx, edges); err != nil {
			return nil, err
		}
	}
	return e.program.Evaluate(data), nil
}

func (e *Engine) rootTitles(ctx context.Context, edges map[int64]model.EdgeSet) (map[int64]string, error) {
	var roots []int64
	for item, set := range edges {
		for _, rule := range e.program.closure {
			if rule.Title == "" && set.Has(rule.IDs[0]) {
				roots = append(roots, item)
				break
			}
		}
	}
	titles := make(map[int64]string, len(roots))
	if len(roots) == 0 {
		return titles, nil
	}

	items, err := e.store.GetItems(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("closure root titles: %w", err)
	}
	for id, item := range items {
		titles[id] = item.Title
	}
	return titles, nil
}
