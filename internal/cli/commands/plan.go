package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/render"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "plan <source>",
		Short: "Show the projection a clean run would generate",
		Long: `Build the cleaning projection for a table and print each output
column with its source expression. Nothing is executed or audited.`,
		Example: `  colnorm plan proj.flat.module1_v1

  # Print the full statement instead of the clause table
  colnorm plan proj.flat.module1_v1 --sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseTableArg(args[0])
			if err != nil {
				return err
			}

			a, closeApp, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			columns, err := a.wh.ColumnNames(cmd.Context(), source)
			if err != nil {
				return err
			}

			plan, err := render.NewProjection(a.cfg.Rules, a.logger).Build(source.Name, columns)
			if err != nil {
				return err
			}

			if showSQL {
				fmt.Fprintf(cmd.OutOrStdout(), "SELECT\n    %s\nFROM `%s`\n",
					plan.SelectList("    "), source.FQN())
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Output", "Sources", "Expression"})
			for _, clause := range plan.Clauses {
				t.AppendRow(table.Row{
					clause.OutputName,
					strings.Join(clause.Sources, "\n"),
					clause.Expr,
				})
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d raw columns -> %d output columns\n",
				len(columns), len(plan.Clauses))
			for _, skipped := range plan.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped duplicate output: %s\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the full statement")

	return cmd
}
