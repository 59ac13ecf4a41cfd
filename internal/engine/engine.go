// Package engine drives reconstruction and reporting over a range of days.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/config"
	"github.com/Veraticus/burnup/internal/edges"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/reconstruct"
	"github.com/Veraticus/burnup/internal/service"
)

// ErrNoPriorData is returned by incremental runs on a scope that was never
// fully reconstructed.
var ErrNoPriorData = fmt.Errorf("%w: scope has no reconstructed data", common.ErrResume)

// Mode selects between a full rebuild and an incremental append.
type Mode string

// Run modes.
const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Options configures a reconstruction run.
type Options struct {
	// Start and End bound the days to rebuild; zero values are derived from
	// the scope and the event log. Incremental runs ignore Start.
	Start    time.Time
	End      time.Time
	Now      func() time.Time
	Progress ProgressFunc
	Mode     Mode
	Retry    common.RetryOptions
	Workers  int
}

// DefaultOptions returns a full run with the default worker count.
func DefaultOptions() Options {
	return Options{
		Mode:    ModeFull,
		Workers: config.DefaultWorkers(),
		Now:     time.Now,
	}
}

// Engine reconstructs one scope.
type Engine struct {
	store Store
	scope *config.Scope
}

// New creates an engine for scope.
func New(store Store, scope *config.Scope) *Engine {
	return &Engine{store: store, scope: scope}
}

// Catalog loads the category and column tables.
func (e *Engine) Catalog(ctx context.Context) (*model.Catalog, error) {
	cats, err := e.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	cols, err := e.store.GetColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns: %w", err)
	}
	return model.NewCatalog(cats, cols), nil
}

// Reconstruct rebuilds the scope's snapshots for a range of days. A full
// run replaces the scope atomically; an incremental run appends the days
// after the newest existing snapshot.
func (e *Engine) Reconstruct(ctx context.Context, opts Options) (*Stats, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}

	// a scope whose rules cannot compile never gets snapshots
	catalog, _, err := e.compile(ctx)
	if err != nil {
		return nil, err
	}

	started := opts.Now()
	stats := newStats(opts.Mode)

	start, end, err := e.dayRange(ctx, opts)
	if err != nil {
		return nil, err
	}
	stats.Start, stats.End = start, end

	if start.After(end) {
		slog.Info("Scope is up to date", "scope", e.scope.Name, "through", model.FormatDay(end))
		return stats, nil
	}

	run := &service.RunRecord{
		ID:        uuid.NewString(),
		Scope:     e.scope.Name,
		Mode:      string(opts.Mode),
		Status:    service.RunStatusRunning,
		StartedAt: started.UTC(),
	}
	if err := e.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	stats.RunID = run.ID

	slog.Info("Starting reconstruction",
		"scope", e.scope.Name,
		"mode", opts.Mode,
		"run_id", run.ID,
		"start", model.FormatDay(start),
		"end", model.FormatDay(end),
		"workers", opts.Workers)

	runErr := e.runDays(ctx, opts, start, end, catalog, stats, run.ID)

	stats.Duration = opts.Now().Sub(started)
	run.Days = stats.Days
	run.RowsWritten = stats.Rows
	run.Skips = stats.SkipCounts()
	run.FinishedAt = opts.Now().UTC()
	run.Status = service.RunStatusSucceeded
	if runErr != nil {
		run.Status = service.RunStatusFailed
	}
	// the run log entry survives cancellation of the run itself
	if err := e.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to record run outcome", "run_id", run.ID, "error", err)
	}

	if runErr != nil {
		return stats, runErr
	}

	slog.Info("Reconstruction complete",
		"scope", e.scope.Name,
		"days", stats.Days,
		"rows", stats.Rows,
		"skipped", stats.TotalSkipped(),
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}

func (e *Engine) dayRange(ctx context.Context, opts Options) (time.Time, time.Time, error) {
	end := opts.End
	if end.IsZero() {
		end = opts.Now()
	}
	end = model.DayOf(end)

	if opts.Mode == ModeIncremental {
		last, ok, err := e.store.MaxDate(ctx, e.scope.Name)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("failed to find last snapshot: %w", err)
		}
		if !ok {
			return time.Time{}, time.Time{}, common.NewUserError(
				fmt.Sprintf("scope %q has no reconstructed days; run a full reconstruction first", e.scope.Name),
				ErrNoPriorData)
		}
		if !opts.Start.IsZero() && !model.DayOf(opts.Start).Equal(last.AddDate(0, 0, 1)) {
			slog.Warn("Ignoring start date for incremental run",
				"start", model.FormatDay(opts.Start),
				"resume_from", model.FormatDay(last.AddDate(0, 0, 1)))
		}
		return last.AddDate(0, 0, 1), end, nil
	}

	start := opts.Start
	if start.IsZero() {
		if configured, ok := e.scope.Start(); ok {
			start = configured
		} else {
			earliest, err := e.store.EarliestEventDate(ctx)
			if errors.Is(err, common.ErrNotFound) {
				return time.Time{}, time.Time{}, common.NewUserError("event log is empty; import events first", err)
			}
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			start = earliest
		}
	}
	return model.DayOf(start), end, nil
}

// runDays computes days in windows of opts.Workers in parallel and commits
// each window in day order, so committed days always form a prefix.
func (e *Engine) runDays(ctx context.Context, opts Options, start, end time.Time, catalog *model.Catalog, stats *Stats, runID string) (err error) {
	var writer service.SnapshotWriter = e.store
	var rebuild service.Rebuild
	if opts.Mode == ModeFull {
		rebuild, err = e.store.BeginRebuild(ctx, e.scope.Name, runID)
		if err != nil {
			return fmt.Errorf("failed to begin rebuild: %w", err)
		}
		writer = rebuild
		defer func() {
			if err == nil {
				return
			}
			if abortErr := rebuild.Abort(context.WithoutCancel(ctx)); abortErr != nil {
				slog.Warn("Failed to discard staged rebuild", "run_id", runID, "error", abortErr)
			}
		}()
	}

	materializer := edges.NewMaterializer(e.store)
	reconstructor := reconstruct.New(e.store, e.scope, catalog)
	days := model.Days(start, end)
	categories := e.scope.Categories()

	for offset := 0; offset < len(days); offset += opts.Workers {
		if err := ctx.Err(); err != nil {
			return err
		}
		window := days[offset:min(offset+opts.Workers, len(days))]
		results := make([][]model.Snapshot, len(window))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i, day := range window {
			g.Go(func() error {
				rows, err := e.buildDay(gctx, materializer, reconstructor, categories, day, opts.Workers, stats)
				if err != nil {
					return err
				}
				results[i] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, day := range window {
			rows := results[i]
			commit := func() error { return writer.WriteSnapshot(ctx, e.scope.Name, day, rows) }
			if err := common.WithRetry(ctx, commit, opts.Retry); err != nil {
				return fmt.Errorf("failed to write %s: %w", model.FormatDay(day), err)
			}
			stats.committed(len(rows))
			if opts.Progress != nil {
				opts.Progress(offset+i+1, len(days))
			}
		}
	}

	if rebuild != nil {
		if err := common.WithRetry(ctx, func() error { return rebuild.Commit(ctx) }, opts.Retry); err != nil {
			return fmt.Errorf("failed to publish rebuild: %w", err)
		}
	}
	return nil
}

// buildDay reconstructs every item with a scope membership on day.
func (e *Engine) buildDay(ctx context.Context, m *edges.Materializer, r *reconstruct.Reconstructor, categories []int64, day time.Time, workers int, stats *Stats) ([]model.Snapshot, error) {
	active, err := m.ActiveEdges(ctx, categories, day)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := r.Preload(ctx, ids); err != nil {
		return nil, err
	}

	snaps := make([]model.Snapshot, len(ids))
	kept := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			snap, outcome, err := r.Reconstruct(gctx, id, day, active[id])
			if err != nil {
				return err
			}
			stats.record(outcome)
			if outcome.Skipped() {
				slog.Debug("Skipped item",
					"scope", e.scope.Name,
					"date", model.FormatDay(day),
					"item", id,
					"reason", outcome.Skip)
				return nil
			}
			snaps[i] = snap
			kept[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconstruct %s: %w", model.FormatDay(day), err)
	}

	rows := make([]model.Snapshot, 0, len(ids))
	for i := range ids {
		if kept[i] {
			rows = append(rows, snaps[i])
		}
	}
	return rows, nil
}
