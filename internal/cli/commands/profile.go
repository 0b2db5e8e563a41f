package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewProfileCommand creates the profile command.
func NewProfileCommand() *cobra.Command {
	var binary bool

	cmd := &cobra.Command{
		Use:   "profile <source>",
		Short: "Inspect a table's contents for columns needing recodes",
		Long: `Run the content checks against one table: single-value "false array"
columns by default, binary 0/1 columns with --binary. Checks run as
batched queries sized by --batch-size.`,
		Example: `  # Find false-array columns
  colnorm profile proj.flat.module1_v1

  # Find binary 0/1 columns instead
  colnorm profile proj.flat.module4_v1 --binary`,
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

			if binary {
				found, err := a.profiler.BinaryStringColumns(cmd.Context(), source)
				if err != nil {
					return err
				}
				printColumns(cmd, "binary", found)
				return nil
			}

			found, err := a.profiler.FalseArrayColumns(cmd.Context(), source)
			if err != nil {
				return err
			}
			printColumns(cmd, "false-array", found)
			return nil
		},
	}

	cmd.Flags().BoolVar(&binary, "binary", false, "Check for binary 0/1 columns instead of false arrays")

	return cmd
}

func printColumns(cmd *cobra.Command, kind string, cols []string) {
	if len(cols) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s columns found\n", kind)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d %s columns:\n", len(cols), kind)
	for _, col := range cols {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", col)
	}
}
