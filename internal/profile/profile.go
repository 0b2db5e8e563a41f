// Package profile inspects table contents to find columns needing value
// recodes: binary 0/1 columns and single-value "false array" columns.
// Checks run as batched warehouse queries so wide tables stay cheap.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opencohort/colnorm/internal/render"
	"github.com/opencohort/colnorm/internal/warehouse"
)

// Profiler runs batched content checks against one table at a time.
type Profiler struct {
	wh        warehouse.Client
	batchSize int
	logger    *slog.Logger

	// falseArrayValues are the literal values a false-array column is
	// allowed to hold.
	falseArrayValues []string

	// reference maps lowercased table name to a curated false-array
	// column list, used instead of the computational check when set.
	reference map[string][]string
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithFalseArrayValues overrides the allowed false-array literals.
func WithFalseArrayValues(values []string) Option {
	return func(p *Profiler) {
		if len(values) > 0 {
			p.falseArrayValues = values
		}
	}
}

// WithReference installs a curated table-to-columns map consulted before
// any computational false-array check.
func WithReference(ref map[string][]string) Option {
	return func(p *Profiler) {
		if len(ref) == 0 {
			return
		}
		p.reference = make(map[string][]string, len(ref))
		for table, cols := range ref {
			p.reference[strings.ToLower(table)] = cols
		}
	}
}

// New creates a Profiler. batchSize caps the columns checked per query;
// values below 1 fall back to 500. logger may be nil.
func New(wh warehouse.Client, batchSize int, logger *slog.Logger, opts ...Option) *Profiler {
	if batchSize < 1 {
		batchSize = 500
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Profiler{
		wh:               wh,
		batchSize:        batchSize,
		logger:           logger,
		falseArrayValues: []string{"[]", "[178420302]", "[958239616]"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BinaryColumns returns the subset of cols whose every value is "0", "1",
// NULL, or empty, in the order given. A failed batch is logged and skipped;
// its columns are treated as non-binary.
func (p *Profiler) BinaryColumns(ctx context.Context, table warehouse.Table, cols []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var binary []string
	for _, batch := range chunk(cols, p.batchSize) {
		query := render.BinaryCheckQuery(table.FQN(), batch)
		results, err := p.wh.QueryBoolRow(ctx, query)
		if err != nil {
			p.logger.Warn("binary check batch failed, skipping",
				"table", table.FQN(), "columns", len(batch), "error", err)
			continue
		}
		for _, col := range batch {
			if results[col] {
				binary = append(binary, col)
			}
		}
	}
	p.logger.Info("binary column check complete",
		"table", table.FQN(), "checked", len(cols), "binary", len(binary))
	return binary, nil
}

// BinaryStringColumns runs the binary check over every string-typed column
// of the table.
func (p *Profiler) BinaryStringColumns(ctx context.Context, table warehouse.Table) ([]string, error) {
	cols, err := p.wh.StringColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("profiling %s: %w", table, err)
	}
	return p.BinaryColumns(ctx, table, cols)
}

// FalseArrayColumns returns the string columns of table that hold only
// single-value array literals. A curated reference entry for the table
// short-circuits the computational check; either way the result is sorted.
// A failed batch is logged and skipped; its columns are left out.
func (p *Profiler) FalseArrayColumns(ctx context.Context, table warehouse.Table) ([]string, error) {
	stringCols, err := p.wh.StringColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("profiling %s: %w", table, err)
	}

	if ref, ok := p.reference[strings.ToLower(table.Name)]; ok {
		return intersect(ref, stringCols), nil
	}

	var found []string
	for _, batch := range chunk(stringCols, p.batchSize) {
		query := render.FalseArrayCheckQuery(table.FQN(), batch, p.falseArrayValues)
		cols, err := p.wh.QueryStrings(ctx, query)
		if err != nil {
			p.logger.Warn("false-array check batch failed, skipping",
				"table", table.FQN(), "columns", len(batch), "error", err)
			continue
		}
		found = append(found, cols...)
	}
	sort.Strings(found)
	p.logger.Info("false-array column check complete",
		"table", table.FQN(), "checked", len(stringCols), "found", len(found))
	return found, nil
}

// intersect keeps the curated entries actually present in the table,
// case-insensitively, using the table's spelling, sorted. A curated name
// also claims its loop variants, so "d_111111111" covers "d_111111111_1_1".
func intersect(curated, actual []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(actual))
	for _, col := range actual {
		lower := strings.ToLower(col)
		for _, cur := range curated {
			c := strings.ToLower(cur)
			if lower != c && !strings.HasPrefix(lower, c+"_") {
				continue
			}
			if _, dup := seen[lower]; !dup {
				seen[lower] = struct{}{}
				out = append(out, col)
			}
			break
		}
	}
	sort.Strings(out)
	return out
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
