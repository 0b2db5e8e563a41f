// Package pipeline orchestrates the cleaning operations end to end:
// fetch columns, build the projection, audit the generated SQL, execute
// it, and clean up intermediates.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opencohort/colnorm/internal/audit"
	"github.com/opencohort/colnorm/internal/classify"
	"github.com/opencohort/colnorm/internal/config"
	"github.com/opencohort/colnorm/internal/profile"
	"github.com/opencohort/colnorm/internal/render"
	"github.com/opencohort/colnorm/internal/warehouse"
	"github.com/opencohort/colnorm/pkg/grammar"
)

// Pipeline wires the warehouse, the audit sink, and the rule set together.
type Pipeline struct {
	wh       warehouse.Client
	sink     audit.Sink
	rules    config.Rules
	profiler *profile.Profiler
	logger   *slog.Logger
}

// New creates a Pipeline. profiler is only needed for binary recoding and
// may be nil otherwise; logger may be nil.
func New(wh warehouse.Client, sink audit.Sink, rules config.Rules, profiler *profile.Profiler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{wh: wh, sink: sink, rules: rules, profiler: profiler, logger: logger}
}

// CleanOptions tune a CleanColumns run.
type CleanOptions struct {
	// RecodeBinary stages the table through an intermediate that rewrites
	// binary 0/1 values to the standardized Yes/No concept IDs before the
	// projection runs.
	RecodeBinary bool

	// DryRun builds and audits the statement without executing it.
	DryRun bool
}

// Result describes one executed (or dry-run) operation.
type Result struct {
	Destination string
	Statement   string
	AuditPath   string
	Executed    bool

	// Skipped lists output names dropped by uniqueness enforcement.
	Skipped []string
}

// CleanColumns normalizes one raw table into its destination.
func (p *Pipeline) CleanColumns(ctx context.Context, source, dest warehouse.Table, opts CleanOptions) (*Result, error) {
	columns, err := p.wh.ColumnNames(ctx, source)
	if err != nil {
		return nil, err
	}
	p.warnNonStandardIDs(source, columns)

	from := source
	var intermediate *warehouse.Table
	if opts.RecodeBinary && !opts.DryRun {
		intermediate, err = p.stageBinaryRecode(ctx, source, columns)
		if err != nil {
			return nil, err
		}
		if intermediate != nil {
			from = *intermediate
			defer p.dropBestEffort(ctx, *intermediate)
		}
	}

	plan, err := render.NewProjection(p.rules, p.logger).Build(source.Name, columns)
	if err != nil {
		return nil, fmt.Errorf("building projection for %s: %w", source, err)
	}

	stmt := render.CreateOrReplace(dest.FQN(), from.FQN(), plan)
	return p.auditAndRun(ctx, dest, stmt, opts.DryRun, plan.Skipped)
}

// MergeTableVersions full-outer-joins two or more cleaned version tables
// into one destination.
func (p *Pipeline) MergeTableVersions(ctx context.Context, sources []warehouse.Table, dest warehouse.Table, dryRun bool) (*Result, error) {
	if len(sources) < 2 {
		return nil, fmt.Errorf("at least two source tables are required, got %d", len(sources))
	}

	classifier := classify.New(p.rules, p.logger)
	tables := make([]render.TableColumns, len(sources))
	for i, src := range sources {
		columns, err := p.wh.ColumnNames(ctx, src)
		if err != nil {
			return nil, err
		}
		tables[i] = render.TableColumns{
			Table:   src.FQN(),
			Columns: classifier.ValidColumns(columns),
		}
	}

	stmt, err := render.BuildMerge(dest.FQN(), tables, p.rules.PrimaryKey)
	if err != nil {
		return nil, err
	}
	return p.auditAndRun(ctx, dest, stmt, dryRun, nil)
}

// ValidationReport is the outcome of a dry validation pass over a table.
type ValidationReport struct {
	Table          string
	Columns        int
	Decisions      map[string]string
	NonStandardIDs []grammar.NonStandardID
	Impure         []ImpureColumn
}

// ImpureColumn pairs a column failing the grammar with its unrecognized
// tokens.
type ImpureColumn struct {
	Column string
	Tokens []string
}

// Ok reports whether every column can be processed.
func (r *ValidationReport) Ok() bool {
	return len(r.Impure) == 0
}

// Validate partitions a table's columns without generating or running any
// SQL, reporting per-column decisions and grammar violations.
func (p *Pipeline) Validate(ctx context.Context, source warehouse.Table) (*ValidationReport, error) {
	columns, err := p.wh.ColumnNames(ctx, source)
	if err != nil {
		return nil, err
	}

	classifier := classify.New(p.rules, p.logger)
	part := classifier.Partition(source.Name, columns)

	report := &ValidationReport{
		Table:          source.FQN(),
		Columns:        len(columns),
		Decisions:      make(map[string]string, len(columns)),
		NonStandardIDs: grammar.FindNonStandardConceptIDs(columns),
	}
	for _, col := range columns {
		if d, ok := part.Decision(col); ok {
			report.Decisions[col] = d.String()
		}
	}

	vocab := classifier.Vocabulary()
	for _, col := range part.Remaining() {
		if !vocab.IsPure(col) {
			report.Impure = append(report.Impure, ImpureColumn{
				Column: col,
				Tokens: vocab.ImpureTokens(col),
			})
		}
	}
	return report, nil
}

// stageBinaryRecode materializes an intermediate table in which every
// detected binary column is recoded to Yes/No concept IDs. It returns nil
// when no binary columns exist.
func (p *Pipeline) stageBinaryRecode(ctx context.Context, source warehouse.Table, columns []string) (*warehouse.Table, error) {
	if p.profiler == nil {
		return nil, fmt.Errorf("binary recoding requested but no profiler configured")
	}

	classifier := classify.New(p.rules, p.logger)
	candidates := classifier.ValidColumns(columns)
	binary, err := p.profiler.BinaryColumns(ctx, source, candidates)
	if err != nil {
		return nil, err
	}
	if len(binary) == 0 {
		p.logger.Info("no binary columns detected, skipping recode stage", "table", source.FQN())
		return nil, nil
	}

	binarySet := make(map[string]struct{}, len(binary))
	for _, col := range binary {
		binarySet[col] = struct{}{}
	}

	clauses := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, ok := binarySet[col]; ok {
			clauses = append(clauses, render.YesNoRecodeExpr(col))
		} else {
			clauses = append(clauses, col)
		}
	}

	staged := source.Sibling(fmt.Sprintf("intermediate_%s_%s", source.Name, uuid.NewString()[:8]))
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE `%s` AS (\nSELECT\n    %s\nFROM `%s`\n)",
		staged.FQN(), strings.Join(clauses, ",\n    "), source.FQN())

	if _, err := p.auditAndRun(ctx, staged, stmt, false, nil); err != nil {
		return nil, fmt.Errorf("staging binary recode: %w", err)
	}
	p.logger.Info("staged binary recode", "table", staged.FQN(), "recoded", len(binary))
	return &staged, nil
}

// auditAndRun records the statement and, unless dry-running, executes it.
// A failed audit write aborts before execution.
func (p *Pipeline) auditAndRun(ctx context.Context, dest warehouse.Table, stmt string, dryRun bool, skipped []string) (*Result, error) {
	path, err := p.sink.Record(dest.FQN(), stmt)
	if err != nil {
		return nil, fmt.Errorf("auditing statement for %s: %w", dest, err)
	}

	result := &Result{
		Destination: dest.FQN(),
		Statement:   stmt,
		AuditPath:   path,
		Skipped:     skipped,
	}
	if dryRun {
		return result, nil
	}

	if err := p.wh.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("executing statement for %s: %w", dest, err)
	}
	result.Executed = true
	return result, nil
}

func (p *Pipeline) warnNonStandardIDs(source warehouse.Table, columns []string) {
	for _, ns := range grammar.FindNonStandardConceptIDs(columns) {
		p.logger.Warn("concept ID deviates from the 9-digit standard",
			"table", source.FQN(), "column", ns.Column, "concept_id", ns.ConceptID)
	}
}

func (p *Pipeline) dropBestEffort(ctx context.Context, table warehouse.Table) {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table.FQN())
	if err := p.wh.Exec(ctx, stmt); err != nil {
		p.logger.Warn("failed to drop intermediate table", "table", table.FQN(), "error", err)
	}
}
