// Package cli provides the command-line interface for colnorm.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/cli/commands"
	"github.com/opencohort/colnorm/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "colnorm",
		Short: "colnorm - Survey Column Normalizer",
		Long: `colnorm normalizes the column names of flattened survey-response tables.

It parses concept IDs, loop numbers, and version suffixes out of raw column
names, merges loop variants with COALESCE, applies configured renames and
transforms, and renders the result as a single CREATE OR REPLACE statement
per table. Every generated statement is audited to disk before it runs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Verbose)
			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to config file (default: ./colnorm.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.String("driver", "", "Warehouse driver name")
	pf.String("dsn", "", "Warehouse connection string")
	pf.String("audit-dir", "", "Directory for generated SQL audit files")
	pf.Int("port", 0, "HTTP server port")
	pf.Int("batch-size", 0, "Columns per profiling query")

	rootCmd.AddCommand(
		commands.NewCleanCommand(),
		commands.NewMergeCommand(),
		commands.NewPlanCommand(),
		commands.NewValidateCommand(),
		commands.NewProfileCommand(),
		commands.NewServeCommand(),
		commands.NewVersionCommand(Version, BuildDate, GitCommit),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
