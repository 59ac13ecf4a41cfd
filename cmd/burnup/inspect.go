package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/engine"
	"github.com/Veraticus/burnup/internal/model"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Explain how items are reconstructed on a day",
	}
	cmd.PersistentFlags().String("scope", "", "Scope to inspect against (required)")
	cmd.PersistentFlags().String("date", "", "Day to inspect (YYYY-MM-DD; default: today)")
	_ = cmd.MarkPersistentFlagRequired("scope")

	cmd.AddCommand(&cobra.Command{
		Use:   "item <id>",
		Short: "Replay one item: memberships, status history, snapshot and category",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspectItem,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "category <id>",
		Short: "List the members of a project or tag",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspectCategory,
	})
	return cmd
}

func inspectEngine(cmd *cobra.Command) (*engine.Engine, time.Time, func(), error) {
	scopeName, _ := cmd.Flags().GetString("scope")
	dateFlag, _ := cmd.Flags().GetString("date")

	day, err := parseDayFlag("date", dateFlag)
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	if day.IsZero() {
		day = model.DayOf(time.Now())
	}

	store, settings, err := initStorage(cmd.Context())
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	closeStore := func() { _ = store.Close() }

	scope, err := loadScope(settings, scopeName)
	if err != nil {
		closeStore()
		return nil, time.Time{}, nil, err
	}
	return engine.New(store, scope), day, closeStore, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func runInspectItem(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	e, day, closeStore, err := inspectEngine(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	trace, err := e.Inspect(cmd.Context(), id, day)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTrace(trace))
	return nil
}

func runInspectCategory(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	e, day, closeStore, err := inspectEngine(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	members, err := e.Members(cmd.Context(), id, day)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderMembers(id, day, members))
	return nil
}
