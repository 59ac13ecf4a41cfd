package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/burnup/internal/aggregate"
	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/reconstruct"
	"github.com/Veraticus/burnup/internal/rules"
)

// ReportStats summarizes one report run.
type ReportStats struct {
	From       time.Time
	To         time.Time
	Mode       Mode
	Days       int
	Rows       int
	Unassigned int
	Aggregates int
}

// Program compiles the scope's rules against the category table. Every
// scope project must exist in the table.
func (e *Engine) Program(ctx context.Context) (*rules.Program, error) {
	_, program, err := e.compile(ctx)
	return program, err
}

func (e *Engine) compile(ctx context.Context) (*model.Catalog, *rules.Program, error) {
	if err := e.scope.Validate(); err != nil {
		return nil, nil, err
	}
	catalog, err := e.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range e.scope.Projects {
		if _, ok := catalog.Category(id); !ok {
			return nil, nil, fmt.Errorf("%w: scope %q project %d: %w", common.ErrInvalidConfig, e.scope.Name, id, rules.ErrUnknownCategory)
		}
	}
	program, err := rules.Compile(e.scope.Name, e.scope.Rules, catalog)
	if err != nil {
		return nil, nil, err
	}
	return catalog, program, nil
}

// Report categorizes the scope's snapshots and aggregates them. A full run
// replaces the report view; an incremental run appends the days after the
// newest report day and never rewrites earlier rows.
func (e *Engine) Report(ctx context.Context, opts Options) (*ReportStats, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}

	program, err := e.Program(ctx)
	if err != nil {
		return nil, err
	}

	last, ok, err := e.store.MaxDate(ctx, e.scope.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to find last snapshot: %w", err)
	}
	if !ok {
		return nil, common.NewUserError(
			fmt.Sprintf("scope %q has no reconstructed days; run reconstruct first", e.scope.Name),
			ErrNoPriorData)
	}

	stats := &ReportStats{Mode: opts.Mode, To: last}
	if opts.Mode == ModeIncremental {
		reported, ok, err := e.store.MaxReportDate(ctx, e.scope.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to find last report day: %w", err)
		}
		if !ok {
			return nil, common.NewUserError(
				fmt.Sprintf("scope %q has no report yet; run a full report first", e.scope.Name),
				ErrNoPriorData)
		}
		stats.From = reported.AddDate(0, 0, 1)
		if stats.From.After(last) {
			slog.Info("Report is up to date", "scope", e.scope.Name, "through", model.FormatDay(reported))
			return stats, nil
		}
	}

	snapshots, err := e.store.Snapshots(ctx, e.scope.Name, stats.From, last)
	if err != nil {
		return nil, err
	}
	byDay := groupByDay(snapshots)
	stats.Days = len(byDay)
	if opts.Mode == ModeFull && len(byDay) > 0 {
		stats.From = byDay[0].day
	}

	categorizer := rules.NewEngine(e.store, program)
	assigned := make([][]model.ReportRow, len(byDay))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, group := range byDay {
		g.Go(func() error {
			rows, err := categorizer.Assign(gctx, group.day, group.rows)
			if err != nil {
				return err
			}
			assigned[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to categorize: %w", err)
	}

	var rows []model.ReportRow
	for _, dayRows := range assigned {
		rows = append(rows, dayRows...)
	}
	stats.Rows = len(rows)
	stats.Unassigned = len(snapshots) - len(rows)

	if opts.Mode == ModeFull {
		rows = rules.ApplyRetroactive(rows, e.scope.RetroactiveCategories, e.scope.RetroactivePoints)
	}

	input := aggregate.Input{Scope: e.scope.Name, Rows: rows}
	if cutoff, ok := e.scope.Cutoff(opts.Now()); ok {
		input.HasCutoff = true
		if input.ResolvedAtCutoff, err = e.store.ResolvedItemsOn(ctx, e.scope.Name, cutoff, e.scope.ResolvedStatus); err != nil {
			return nil, fmt.Errorf("failed to load items resolved at cutoff: %w", err)
		}
		lastq := aggregate.LastQuarter(cutoff)
		if input.ResolvedAtLastQ, err = e.store.ResolvedItemsOn(ctx, e.scope.Name, lastq, e.scope.ResolvedStatus); err != nil {
			return nil, fmt.Errorf("failed to load items resolved at last quarter: %w", err)
		}
	}
	aggregates := aggregate.Aggregate(input)
	stats.Aggregates = len(aggregates)

	write := func() error {
		if opts.Mode == ModeIncremental {
			return e.store.AppendReport(ctx, e.scope.Name, rows, aggregates)
		}
		return e.store.ReplaceReport(ctx, e.scope.Name, rows, aggregates)
	}
	if err := common.WithRetry(ctx, write, opts.Retry); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("Report complete",
		"scope", e.scope.Name,
		"mode", opts.Mode,
		"days", stats.Days,
		"rows", stats.Rows,
		"unassigned", stats.Unassigned,
		"aggregates", stats.Aggregates)
	return stats, nil
}

// OpenTasks returns the unresolved rows of displayed categories on the
// newest day of rows, with item titles and whether each item carries points
// of its own.
func (e *Engine) OpenTasks(ctx context.Context, rows []model.ReportRow) ([]model.OpenTask, error) {
	var last time.Time
	for _, row := range rows {
		if row.Date.After(last) {
			last = row.Date
		}
	}

	var open []model.ReportRow
	var ids []int64
	for _, row := range rows {
		if !row.Date.Equal(last) || !row.Display || row.Status == e.scope.ResolvedStatus {
			continue
		}
		open = append(open, row)
		ids = append(ids, row.ItemID)
	}
	if len(open) == 0 {
		return nil, nil
	}

	catalog, err := e.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	items, err := e.store.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	r := reconstruct.New(e.store, e.scope, catalog)
	if err := r.Preload(ctx, ids); err != nil {
		return nil, err
	}

	tasks := make([]model.OpenTask, 0, len(open))
	for _, row := range open {
		pointed, err := r.Pointed(ctx, row.ItemID, last)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, model.OpenTask{Title: items[row.ItemID].Title, ReportRow: row, Pointed: pointed})
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Category != tasks[j].Category {
			return tasks[i].Category < tasks[j].Category
		}
		return tasks[i].ItemID < tasks[j].ItemID
	})
	return tasks, nil
}

type dayGroup struct {
	day  time.Time
	rows []model.Snapshot
}

// groupByDay splits date-ordered snapshots into per-day groups.
func groupByDay(snapshots []model.Snapshot) []dayGroup {
	var groups []dayGroup
	for _, snap := range snapshots {
		if n := len(groups); n > 0 && groups[n-1].day.Equal(snap.Date) {
			groups[n-1].rows = append(groups[n-1].rows, snap)
			continue
		}
		groups = append(groups, dayGroup{day: snap.Date, rows: []model.Snapshot{snap}})
	}
	return groups
}
