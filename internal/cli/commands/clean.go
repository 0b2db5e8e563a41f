package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/pipeline"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	var recodeBinary, dryRun bool

	cmd := &cobra.Command{
		Use:   "clean <source> <destination>",
		Short: "Normalize one table's columns into a destination table",
		Long: `Build and execute the cleaning projection for a single table.

Both tables are fully qualified as project.dataset.table. The generated
statement is written to the audit directory before it runs.`,
		Example: `  # Clean a flattened module table
  colnorm clean proj.flat.module1_v1 proj.clean.module1_v1

  # Recode detected binary 0/1 columns to Yes/No concept IDs first
  colnorm clean proj.flat.module4_v1 proj.clean.module4_v1 --recode-binary

  # Audit the statement without executing it
  colnorm clean proj.flat.module1_v1 proj.clean.module1_v1 --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseTableArg(args[0])
			if err != nil {
				return err
			}
			dest, err := parseTableArg(args[1])
			if err != nil {
				return err
			}

			a, closeApp, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			result, err := a.pipe.CleanColumns(cmd.Context(), source, dest, pipeline.CleanOptions{
				RecodeBinary: recodeBinary,
				DryRun:       dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: statement audited at %s\n", result.AuditPath)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s -> %s (audit: %s)\n",
				source.FQN(), result.Destination, result.AuditPath)
			for _, skipped := range result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "  skipped duplicate output: %s\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&recodeBinary, "recode-binary", false, "Recode binary 0/1 columns to Yes/No concept IDs via an intermediate table")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Audit the statement without executing it")

	return cmd
}
