package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/classify"
	"github.com/opencohort/colnorm/internal/pipeline"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <source>",
		Short: "Check a table's columns against the naming grammar",
		Long: `Partition a table's columns and report, per column, what the cleaning
projection would do with it. Exits non-zero when any column cannot be
processed.`,
		Example: `  colnorm validate proj.flat.module1_v1`,
		Args:    cobra.ExactArgs(1),
	}

	fixSuggestions := cmd.Flags().Bool("fix-suggestions", false,
		"suggest repaired names for impure columns using the configured exception tokens")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		source, err := parseTableArg(args[0])
		if err != nil {
			return err
		}

		a, closeApp, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		report, err := a.pipe.Validate(cmd.Context(), source)
		if err != nil {
			return err
		}

		cols := make([]string, 0, len(report.Decisions))
		for col := range report.Decisions {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Column", "Decision"})
		for _, col := range cols {
			t.AppendRow(table.Row{col, report.Decisions[col]})
		}
		t.Render()

		for _, ns := range report.NonStandardIDs {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s has non-standard concept ID %s\n",
				ns.Column, ns.ConceptID)
		}

		if !report.Ok() {
			for _, impure := range report.Impure {
				fmt.Fprintf(cmd.OutOrStdout(), "impure: %s (tokens: %s)\n",
					impure.Column, strings.Join(impure.Tokens, ", "))
			}
			if *fixSuggestions {
				printFixSuggestions(cmd, report.Impure, a.cfg.Rules.ExceptionTokens)
			}
			return fmt.Errorf("%d of %d columns cannot be processed", len(report.Impure), report.Columns)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nAll %d columns can be processed\n", report.Columns)
		return nil
	}

	return cmd
}

// printFixSuggestions repairs the impure column names against the configured
// exception tokens and shows the result, or lists the tokens still needing a
// mapping. Repair is all-or-nothing: one unmapped token blocks the batch.
func printFixSuggestions(cmd *cobra.Command, impure []pipeline.ImpureColumn, exceptions map[string]string) {
	names := make([]string, len(impure))
	for i, col := range impure {
		names[i] = col.Column
	}

	fixed, err := classify.RepairNames(names, exceptions)
	if err != nil {
		var missing *classify.MissingMappingError
		if errors.As(err, &missing) {
			fmt.Fprintf(cmd.OutOrStdout(), "no exception mapping for tokens: %s\n",
				strings.Join(missing.Tokens, ", "))
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cannot suggest fixes: %v\n", err)
		return
	}
	for i, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "suggest: %s -> %s\n", name, fixed[i])
	}
}
