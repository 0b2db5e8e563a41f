// Package classify partitions a table's raw column set before rendering.
// Every column receives exactly one decision per processing pass, derived
// from the configured rule tables plus the name grammar.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opencohort/colnorm/internal/config"
	"github.com/opencohort/colnorm/pkg/grammar"
)

// Decision classifies a raw column name.
type Decision int

const (
	// DecisionPrimaryKey is the participant-key passthrough column.
	DecisionPrimaryKey Decision = iota
	// DecisionForbidden drops the column by exact-name match.
	DecisionForbidden
	// DecisionExcludedSubstring drops the column by substring match
	// (data-type-conflict and known-misnamed markers).
	DecisionExcludedSubstring
	// DecisionOneOffRenamed consumes the column as a one-off rename source.
	DecisionOneOffRenamed
	// DecisionCustomTransformed consumes the column as a custom-transform
	// source.
	DecisionCustomTransformed
	// DecisionLoopCandidate routes the column to loop/version grouping.
	DecisionLoopCandidate
	// DecisionPassthrough keeps the column individually.
	DecisionPassthrough
)

// String returns the decision name for logs.
func (d Decision) String() string {
	switch d {
	case DecisionPrimaryKey:
		return "primary_key"
	case DecisionForbidden:
		return "forbidden"
	case DecisionExcludedSubstring:
		return "excluded_substring"
	case DecisionOneOffRenamed:
		return "one_off_renamed"
	case DecisionCustomTransformed:
		return "custom_transformed"
	case DecisionLoopCandidate:
		return "loop_candidate"
	case DecisionPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Partition is the result of classifying a table's columns. Slices preserve
// input order.
type Partition struct {
	// PrimaryKey is the primary-key column as it appears in the schema, or
	// "" when the table has none.
	PrimaryKey string

	Forbidden   []string
	Excluded    []string
	OneOff      []string
	Custom      []string
	Loop        []string
	Passthrough []string

	decisions map[string]Decision
}

// Decision returns the decision recorded for a column.
func (p *Partition) Decision(col string) (Decision, bool) {
	d, ok := p.decisions[col]
	return d, ok
}

// Remaining returns the columns left for grammar-driven processing (loop
// candidates first, then passthroughs), in input order within each class.
func (p *Partition) Remaining() []string {
	out := make([]string, 0, len(p.Loop)+len(p.Passthrough))
	out = append(out, p.Loop...)
	out = append(out, p.Passthrough...)
	return out
}

// Classifier applies the rule tables to raw column sets.
type Classifier struct {
	rules  config.Rules
	vocab  *grammar.Vocabulary
	logger *slog.Logger
}

// New creates a Classifier. logger may be nil.
func New(rules config.Rules, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		rules:  rules,
		vocab:  grammar.NewVocabulary(rules.AllowedNames, rules.ForbiddenNames, rules.AllowedTokens),
		logger: logger,
	}
}

// Vocabulary exposes the purity vocabulary built from the rules.
func (c *Classifier) Vocabulary() *grammar.Vocabulary {
	return c.vocab
}

// IsExcluded reports whether a column is dropped outright, and under which
// decision.
func (c *Classifier) IsExcluded(col string) (Decision, bool) {
	if c.vocab.IsForbiddenName(col) {
		return DecisionForbidden, true
	}
	lower := strings.ToLower(col)
	for _, sub := range c.rules.ExcludedSubstrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return DecisionExcludedSubstring, true
		}
	}
	return 0, false
}

// ValidColumns filters a raw column list down to the columns that survive
// the forbidden-name and excluded-substring rules, preserving order.
func (c *Classifier) ValidColumns(cols []string) []string {
	valid := make([]string, 0, len(cols))
	for _, col := range cols {
		if d, dropped := c.IsExcluded(col); dropped {
			c.logger.Debug("dropping column", "column", col, "reason", d.String())
			continue
		}
		valid = append(valid, col)
	}
	return valid
}

// Partition classifies every column of a table in one pass. table is the
// identifier used to look up one-off renames and custom transforms.
func (c *Classifier) Partition(table string, cols []string) *Partition {
	renameSources := make(map[string]struct{})
	for _, m := range c.rules.RenamesFor(table) {
		renameSources[strings.ToLower(m.Source)] = struct{}{}
	}
	transformSources := make(map[string]struct{})
	for _, tr := range c.rules.TransformsFor(table) {
		for _, src := range tr.Source {
			transformSources[strings.ToLower(src)] = struct{}{}
		}
	}

	p := &Partition{decisions: make(map[string]Decision, len(cols))}
	for _, col := range cols {
		d := c.decide(col, renameSources, transformSources)
		p.decisions[col] = d
		switch d {
		case DecisionPrimaryKey:
			p.PrimaryKey = col
		case DecisionForbidden:
			p.Forbidden = append(p.Forbidden, col)
		case DecisionExcludedSubstring:
			p.Excluded = append(p.Excluded, col)
		case DecisionOneOffRenamed:
			p.OneOff = append(p.OneOff, col)
		case DecisionCustomTransformed:
			p.Custom = append(p.Custom, col)
		case DecisionLoopCandidate:
			p.Loop = append(p.Loop, col)
		case DecisionPassthrough:
			p.Passthrough = append(p.Passthrough, col)
		}
	}

	c.logger.Debug("partitioned columns",
		"table", table,
		"total", len(cols),
		"dropped", len(p.Forbidden)+len(p.Excluded),
		"one_off", len(p.OneOff),
		"custom", len(p.Custom),
		"loop", len(p.Loop),
		"passthrough", len(p.Passthrough))

	return p
}

func (c *Classifier) decide(col string, renameSources, transformSources map[string]struct{}) Decision {
	if col == c.rules.PrimaryKey {
		return DecisionPrimaryKey
	}
	if d, dropped := c.IsExcluded(col); dropped {
		return d
	}
	lower := strings.ToLower(col)
	if _, ok := renameSources[lower]; ok {
		return DecisionOneOffRenamed
	}
	if _, ok := transformSources[lower]; ok {
		return DecisionCustomTransformed
	}
	if _, ok := grammar.ExtractLoopNumber(col); ok {
		if len(grammar.ExtractOrderedConceptIDs(grammar.StripVersionSuffix(col))) > 0 {
			return DecisionLoopCandidate
		}
	}
	return DecisionPassthrough
}

// EnsurePure verifies that every remaining column passes purity
// classification. The first impure column halts processing; the grammar
// engine does not guess.
func (c *Classifier) EnsurePure(cols []string) error {
	for _, col := range cols {
		if !c.vocab.IsPure(col) {
			return &ImpurityError{Column: col, Tokens: c.vocab.ImpureTokens(col)}
		}
	}
	return nil
}

// ImpurityError reports a column name the grammar cannot process. The
// column must be added to an exception mapping or exclusion list.
type ImpurityError struct {
	Column string
	Tokens []string
}

func (e *ImpurityError) Error() string {
	if len(e.Tokens) > 0 {
		return fmt.Sprintf("column %q is not pure (disallowed tokens: %s); add it to an exception mapping or exclusion list",
			e.Column, strings.Join(e.Tokens, ", "))
	}
	return fmt.Sprintf("column %q is not pure; add it to an exception mapping or exclusion list", e.Column)
}
