package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/engine"
	"github.com/Veraticus/burnup/internal/model"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a scope's snapshots, report rows and aggregates",
		Long: `Reset removes everything reconstructed for a scope so the next full
reconstruction starts from nothing.

The event log and the run log are kept.`,
		RunE: runReset,
	}
	cmd.Flags().String("scope", "", "Scope to reset (required)")
	cmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scopeName, _ := cmd.Flags().GetString("scope")
	force, _ := cmd.Flags().GetBool("force")

	store, settings, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scope, err := loadScope(settings, scopeName)
	if err != nil {
		return err
	}

	e := engine.New(store, scope)
	status, err := e.Status(ctx)
	if err != nil {
		return err
	}
	if !status.HasSnapshots && !status.HasReport {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Scope %s has no reconstructed data. Nothing to reset.", scope.Name)))
		return nil
	}

	if !force {
		through := "-"
		if status.HasSnapshots {
			through = model.FormatDay(status.SnapshotsThrough)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "This will delete every snapshot, report row and aggregate of scope %s (through %s).\n", scope.Name, through)
		fmt.Fprint(cmd.OutOrStdout(), "\nAre you sure you want to continue? [y/N]: ")

		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if answer := strings.TrimSpace(response); answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Reset canceled.")
			return nil
		}
	}

	if err := e.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reset scope %s", scope.Name)))
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'burnup reconstruct --scope %s' to rebuild it.\n", scope.Name)
	return nil
}
