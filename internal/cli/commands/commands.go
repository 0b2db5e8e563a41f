// Package commands implements the colnorm subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/audit"
	"github.com/opencohort/colnorm/internal/config"
	"github.com/opencohort/colnorm/internal/pipeline"
	"github.com/opencohort/colnorm/internal/profile"
	"github.com/opencohort/colnorm/internal/warehouse"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded configuration in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	if logger, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// app bundles the wired dependencies a command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	wh       *warehouse.DB
	sink     *audit.FileSink
	profiler *profile.Profiler
	pipe     *pipeline.Pipeline
}

// buildApp opens the warehouse connection and wires the pipeline. The
// returned close function releases the connection.
func buildApp(cmd *cobra.Command) (*app, func(), error) {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	if cfg.Warehouse.DSN == "" {
		return nil, nil, fmt.Errorf("a warehouse DSN is required (--dsn or warehouse.dsn)")
	}

	wh, err := warehouse.Open(cmd.Context(), cfg.Warehouse.Driver, cfg.Warehouse.DSN, logger)
	if err != nil {
		return nil, nil, err
	}

	sink, err := audit.NewFileSink(cfg.Audit.Dir, logger)
	if err != nil {
		wh.Close()
		return nil, nil, err
	}

	opts := []profile.Option{profile.WithFalseArrayValues(cfg.Profile.FalseArrayValues)}
	if cfg.Profile.UseReference {
		opts = append(opts, profile.WithReference(cfg.Profile.Reference))
	}
	profiler := profile.New(wh, cfg.Profile.BatchSize, logger, opts...)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		wh:       wh,
		sink:     sink,
		profiler: profiler,
		pipe:     pipeline.New(wh, sink, cfg.Rules, profiler, logger),
	}
	return a, func() { wh.Close() }, nil
}

func parseTableArg(arg string) (warehouse.Table, error) {
	return warehouse.ParseQualifiedTable(arg)
}
