package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/warehouse"
)

// NewMergeCommand creates the merge command.
func NewMergeCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "merge <destination> <source>...",
		Short: "Merge two or more cleaned version tables into one",
		Long: `Full-outer-join cleaned version tables on the primary key.

Columns present in every source coalesce with the newest version taking
precedence; version-specific columns pass through unchanged.`,
		Example: `  # Merge two cleaned versions of a module
  colnorm merge proj.clean.module1 proj.clean.module1_v1 proj.clean.module1_v2`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := parseTableArg(args[0])
			if err != nil {
				return err
			}
			sources := make([]warehouse.Table, 0, len(args)-1)
			for _, raw := range args[1:] {
				tbl, err := parseTableArg(raw)
				if err != nil {
					return err
				}
				sources = append(sources, tbl)
			}

			a, closeApp, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			result, err := a.pipe.MergeTableVersions(cmd.Context(), sources, dest, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: statement audited at %s\n", result.AuditPath)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d tables into %s (audit: %s)\n",
				len(sources), result.Destination, result.AuditPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Audit the statement without executing it")

	return cmd
}
