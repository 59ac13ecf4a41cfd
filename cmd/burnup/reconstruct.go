package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/engine"
)

func reconstructCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild daily task snapshots for a scope",
		Long: `Replay the event log one day at a time and write one snapshot row per item
per day for the scope.

A full run rebuilds the scope from its start date and only replaces the
existing rows once every day succeeded. An incremental run continues from the
day after the newest snapshot and never touches earlier rows.`,
		RunE: runReconstruct,
	}

	cmd.Flags().String("scope", "", "Scope to reconstruct (required)")
	cmd.Flags().Bool("incremental", false, "Continue after the newest reconstructed day")
	cmd.Flags().String("start", "", "First day to rebuild (YYYY-MM-DD; default: scope start_date or first event)")
	cmd.Flags().String("end", "", "Last day to rebuild (YYYY-MM-DD; default: today)")
	cmd.Flags().Int("workers", 0, "Days computed in parallel (default: engine.workers)")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	_ = cmd.MarkFlagRequired("scope")

	return cmd
}

func runReconstruct(cmd *cobra.Command, _ []string) error {
	scopeName, _ := cmd.Flags().GetString("scope")
	incremental, _ := cmd.Flags().GetBool("incremental")
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	workers, _ := cmd.Flags().GetInt("workers")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	store, settings, err := initStorage(cmd.Context())
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
	if workers > 0 {
		opts.Workers = workers
	}
	if incremental {
		opts.Mode = engine.ModeIncremental
	}
	if opts.Start, err = parseDayFlag("start", startFlag); err != nil {
		return err
	}
	if opts.End, err = parseDayFlag("end", endFlag); err != nil {
		return err
	}
	if !noProgress {
		opts.Progress = cli.NewDayProgress(cmd.ErrOrStderr(), "Reconstructing "+scope.Name).Update
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(),
		fmt.Sprintf("burnup reconstruct --scope %s --incremental", scope.Name))
	ctx := handler.HandleInterrupts(cmd.Context())

	stats, err := engine.New(store, scope).Reconstruct(ctx, opts)
	if err != nil {
		return interrupted(handler, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRunSummary(scope.Name, stats))
	return nil
}
