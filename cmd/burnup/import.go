package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/ingest"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ndjson>...",
		Short: "Load normalized event-log records",
		Long: `Load items, categories, columns, transactions, edges and links from
newline-delimited JSON files into the event store.

Each line is {"type": "...", "data": {...}}. Records already in the store are
skipped, so re-importing a full dump is safe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	cmd.Flags().Int("batch-size", ingest.DefaultBatchSize, "Records written per transaction")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	store, _, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "burnup import <same files>")
	ctx = handler.HandleInterrupts(ctx)

	var total ingest.Counts
	for _, path := range args {
		f, err := os.Open(path) //nolint:gosec // user-supplied input file
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		counts, err := ingest.NewLoader(store, batchSize).Load(ctx, f)
		_ = f.Close()
		if err != nil {
			return interrupted(handler, fmt.Errorf("failed to import %s: %w", path, err))
		}

		total.Items += counts.Items
		total.Categories += counts.Categories
		total.Columns += counts.Columns
		total.Transactions += counts.Transactions
		total.Edges += counts.Edges
		total.Links += counts.Links
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Imported %d records (%d items, %d transactions, %d edges, %d links)",
		total.Total(), total.Items, total.Transactions, total.Edges, total.Links)))
	return nil
}
