// Package render builds deterministic SQL projections from classified
// column sets: the single-table cleaning statement, the multi-table merge
// statement, custom transform templates, and the profiling expressions.
package render

import (
	"log/slog"
	"strings"
)

// OutputClause is one entry of a SELECT list: a bare column reference or a
// COALESCE over two or more source columns, aliased to a unique output name.
type OutputClause struct {
	// OutputName is unique case-insensitively across the whole plan.
	OutputName string

	// Expr is the rendered source expression.
	Expr string

	// Sources are the raw columns the clause reads, in expression order.
	Sources []string
}

// SQL renders the clause for a SELECT list.
func (c OutputClause) SQL() string {
	if c.Expr == c.OutputName {
		return c.Expr
	}
	return c.Expr + " AS " + c.OutputName
}

// Plan is an ordered sequence of output clauses with global output-name
// uniqueness. A clause whose name is already claimed is dropped and logged,
// never silently overwritten; earlier processing steps always win.
type Plan struct {
	Clauses []OutputClause

	// Skipped records output names that lost a collision, in occurrence
	// order.
	Skipped []string

	claimed map[string]struct{}
	logger  *slog.Logger
}

// NewPlan creates an empty plan. logger may be nil.
func NewPlan(logger *slog.Logger) *Plan {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Plan{
		claimed: make(map[string]struct{}),
		logger:  logger,
	}
}

// Add appends a clause unless its output name is already claimed. It
// returns false on a collision.
func (p *Plan) Add(clause OutputClause) bool {
	key := strings.ToLower(clause.OutputName)
	if _, taken := p.claimed[key]; taken {
		p.logger.Warn("output name already claimed, skipping clause",
			"output", clause.OutputName, "sources", strings.Join(clause.Sources, ","))
		p.Skipped = append(p.Skipped, clause.OutputName)
		return false
	}
	p.claimed[key] = struct{}{}
	p.Clauses = append(p.Clauses, clause)
	return true
}

// Claimed reports whether an output name is already taken.
func (p *Plan) Claimed(name string) bool {
	_, taken := p.claimed[strings.ToLower(name)]
	return taken
}

// SelectList renders the clauses joined for a SELECT body.
func (p *Plan) SelectList(indent string) string {
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = c.SQL()
	}
	return strings.Join(parts, ",\n"+indent)
}
