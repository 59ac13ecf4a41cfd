package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/config"
	"github.com/Veraticus/burnup/internal/engine"
)

func scopesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "Inspect scope configurations",
	}
	cmd.AddCommand(scopesListCmd())
	cmd.AddCommand(scopesValidateCmd())
	cmd.AddCommand(scopesStatusCmd())
	return cmd
}

func scopesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scope files in the scopes directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			names, err := scopeNames(settings.ScopesDir)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No scopes in "+settings.ScopesDir))
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func scopeNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scopes directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func scopesValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile a scope's rules against the category table",
		Long: `Load the scope file and compile its rules against the stored categories
without writing anything. Fails on unknown rule kinds, unknown category ids and
rules with the wrong number of ids.`,
		RunE: runScopesValidate,
	}
	cmd.Flags().String("scope", "", "Scope to validate (required)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func runScopesValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scopeName, _ := cmd.Flags().GetString("scope")

	store, settings, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scope, err := loadScope(settings, scopeName)
	if err != nil {
		return err
	}
	program, err := engine.New(store, scope).Program(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, rule := range program.Rules() {
		fmt.Fprintf(&b, "%3d.%-2d %-22s %s\n", rule.Order, rule.Sub, rule.Kind, rule.Title)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Scope "+scope.Name, strings.TrimRight(b.String(), "\n")))
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d rules compiled", len(program.Rules()))))
	return nil
}

func scopesStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the newest run and the days stored for a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			scopeName, _ := cmd.Flags().GetString("scope")

			store, settings, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			scope, err := loadScope(settings, scopeName)
			if err != nil {
				return err
			}
			status, err := engine.New(store, scope).Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderScopeStatus(scope.Name, status))
			return nil
		},
	}
	cmd.Flags().String("scope", "", "Scope to show (required)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
