package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/aggregate"
	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/engine"
	"github.com/Veraticus/burnup/internal/export"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Categorize snapshots and write the reporting feed",
		Long: `Assign every reconstructed snapshot of the scope a report category using the
scope's rules, aggregate the results by day, category, status and maintenance
type, and write the feed:

  aggregates.csv       per range, day, category, status and maintenance type
  recently_closed.csv  items resolved per day and category
  status.csv           newest day, categories whose rule sets include_in_status
  open_tasks.csv       unresolved items of displayed categories on the newest day
  unpointed.csv        the open tasks whose points come from default_points`,
		RunE: runReport,
	}

	cmd.Flags().String("scope", "", "Scope to report (required)")
	cmd.Flags().Bool("incremental", false, "Only categorize days after the newest report day")
	cmd.Flags().String("out", "", "Output directory (default: ./<scope>)")
	cmd.Flags().String("closed-since", "", "First day counted in recently_closed.csv (YYYY-MM-DD; default: scope cutoff)")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scopeName, _ := cmd.Flags().GetString("scope")
	incremental, _ := cmd.Flags().GetBool("incremental")
	outDir, _ := cmd.Flags().GetString("out")
	closedFlag, _ := cmd.Flags().GetString("closed-since")

	store, settings, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scope, err := loadScope(settings, scopeName)
	if err != nil {
		return err
	}

	opts := engine.DefaultOptions()
	opts.Workers = settings.Workers
	if incremental {
		opts.Mode = engine.ModeIncremental
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "")
	ctx = handler.HandleInterrupts(ctx)

	e := engine.New(store, scope)
	stats, err := e.Report(ctx, opts)
	if err != nil {
		return interrupted(handler, err)
	}

	rows, err := store.ReportRows(ctx, scope.Name)
	if err != nil {
		return err
	}
	aggregates, err := store.Aggregates(ctx, scope.Name)
	if err != nil {
		return err
	}

	closedSince, err := parseDayFlag("closed-since", closedFlag)
	if err != nil {
		return err
	}
	if closedSince.IsZero() {
		if cutoff, ok := scope.Cutoff(time.Now()); ok {
			closedSince = cutoff
		}
	}
	feed := export.Feed{
		Aggregates: aggregates,
		Closed:     aggregate.RecentlyClosed(scope.Name, rows, scope.ResolvedStatus, closedSince),
		Status:     aggregate.Status(scope.Name, rows, stats.To),
	}
	if feed.Open, err = e.OpenTasks(ctx, rows); err != nil {
		return err
	}

	if outDir == "" {
		outDir = filepath.Join(".", scope.Name)
	}
	files, err := export.WriteFeed(outDir, feed)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderReportSummary(scope.Name, stats, files))
	return nil
}
