package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/edges"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/reconstruct"
	"github.com/Veraticus/burnup/internal/rules"
	"github.com/Veraticus/burnup/internal/service"
)

// ScopeStatus is what is stored for a scope right now.
type ScopeStatus struct {
	// LastRun is nil when the scope was never reconstructed.
	LastRun          *service.RunRecord
	SnapshotsThrough time.Time
	ReportThrough    time.Time
	HasSnapshots     bool
	HasReport        bool
}

// Status reports the newest run and the newest snapshot and report days.
func (e *Engine) Status(ctx context.Context) (*ScopeStatus, error) {
	status := &ScopeStatus{}

	run, err := e.store.LatestRun(ctx, e.scope.Name)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load last run: %w", err)
	default:
		status.LastRun = run
	}

	if status.SnapshotsThrough, status.HasSnapshots, err = e.store.MaxDate(ctx, e.scope.Name); err != nil {
		return nil, fmt.Errorf("failed to find last snapshot: %w", err)
	}
	if status.ReportThrough, status.HasReport, err = e.store.MaxReportDate(ctx, e.scope.Name); err != nil {
		return nil, fmt.Errorf("failed to find last report day: %w", err)
	}
	return status, nil
}

// Reset removes the scope's snapshots, report rows, and aggregates. The event
// log and the run log are kept.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.WipeScope(ctx, e.scope.Name); err != nil {
		return fmt.Errorf("failed to reset scope %q: %w", e.scope.Name, err)
	}
	slog.Info("Scope reset", "scope", e.scope.Name)
	return nil
}

// Trace explains how one item is reconstructed and categorized on one day.
type Trace struct {
	Day         time.Time
	Item        model.Item
	Memberships []int64
	// History holds the status and points changes known on Day.
	History  []model.TransactionEvent
	Outcome  reconstruct.Outcome
	Snapshot model.Snapshot
	Category string
	Stored   bool
}

// Inspect replays one item on day without writing anything. Stored reports
// whether the scope's snapshot table has a row for the item on day.
func (e *Engine) Inspect(ctx context.Context, itemID int64, day time.Time) (*Trace, error) {
	if itemID == 0 {
		return nil, fmt.Errorf("inspect: zero item id")
	}
	day = model.DayOf(day)

	catalog, program, err := e.compile(ctx)
	if err != nil {
		return nil, err
	}

	trace := &Trace{Day: day, Item: model.Item{ID: itemID}}
	item, err := e.store.GetItem(ctx, itemID)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		trace.Item = *item
	}

	set, err := edges.NewMaterializer(e.store).ForItem(ctx, itemID, e.scope.Categories(), day)
	if err != nil {
		return nil, err
	}
	trace.Memberships = set.Sorted()

	asOf := model.AsOf(day)
	for _, attr := range []string{model.AttrStatus, model.AttrPoints} {
		events, err := e.store.TransactionEvents(ctx, itemID, attr)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Timestamp.Before(asOf) {
				trace.History = append(trace.History, ev)
			}
		}
	}
	sort.SliceStable(trace.History, func(i, j int) bool {
		a, b := trace.History[i], trace.History[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})

	snap, outcome, err := reconstruct.New(e.store, e.scope, catalog).Reconstruct(ctx, itemID, day, set)
	if err != nil {
		return nil, err
	}
	trace.Outcome = outcome
	if outcome.Skipped() {
		return trace, nil
	}
	trace.Snapshot = snap

	assigned, err := rules.NewEngine(e.store, program).Assign(ctx, day, []model.Snapshot{snap})
	if err != nil {
		return nil, err
	}
	if len(assigned) == 1 {
		trace.Category = assigned[0].Category
	}

	stored, err := e.store.Snapshots(ctx, e.scope.Name, day, day)
	if err != nil {
		return nil, err
	}
	for _, row := range stored {
		if row.ItemID == itemID {
			trace.Stored = true
			break
		}
	}
	return trace, nil
}

// Member is one item that belongs to a category on a day.
type Member struct {
	Item model.Item
	// InScope is false when none of the item's memberships is a scope project.
	InScope bool
}

// Members lists the items that are members of categoryID on day.
func (e *Engine) Members(ctx context.Context, categoryID int64, day time.Time) ([]Member, error) {
	day = model.DayOf(day)
	m := edges.NewMaterializer(e.store)

	ids, err := m.Members(ctx, categoryID, day)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := e.store.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	active, err := m.ActiveEdges(ctx, e.scope.Projects, day)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(ids))
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			item = model.Item{ID: id}
		}
		members = append(members, Member{Item: item, InScope: len(active[id]) > 0})
	}
	return members, nil
}
