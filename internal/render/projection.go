package render

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opencohort/colnorm/internal/classify"
	"github.com/opencohort/colnorm/internal/config"
	"github.com/opencohort/colnorm/pkg/grammar"
)

// Projection builds the cleaning SELECT list for one table. Steps run in a
// fixed order (primary key, one-off renames, substring-excision merges,
// custom transforms, grammar-driven loop and non-loop columns) and a later
// step always defers to an earlier step's claimed output name.
type Projection struct {
	rules      config.Rules
	classifier *classify.Classifier
	logger     *slog.Logger
}

// NewProjection creates a projection builder. logger may be nil.
func NewProjection(rules config.Rules, logger *slog.Logger) *Projection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Projection{
		rules:      rules,
		classifier: classify.New(rules, logger),
		logger:     logger,
	}
}

// Build classifies the raw columns of table and produces the projection
// plan. It fails with classify.ImpurityError when a remaining column defies
// the grammar.
func (p *Projection) Build(table string, columns []string) (*Plan, error) {
	part := p.classifier.Partition(table, columns)
	plan := NewPlan(p.logger)

	// Step 1: primary-key passthrough, preserved verbatim.
	if part.PrimaryKey != "" {
		plan.Add(OutputClause{
			OutputName: part.PrimaryKey,
			Expr:       part.PrimaryKey,
			Sources:    []string{part.PrimaryKey},
		})
	}

	consumed := make(map[string]struct{})

	p.addOneOffRenames(plan, table, part, consumed)
	p.addExcisionMerges(plan, part, consumed)
	if err := p.addCustomTransforms(plan, table, consumed); err != nil {
		return nil, err
	}
	if err := p.addGrammarColumns(plan, part, consumed); err != nil {
		return nil, err
	}

	return plan, nil
}

// addOneOffRenames applies the table-scoped exact-name mappings. Mappings
// sharing a target merge into one COALESCE, as does a target that already
// exists as a raw column; colliding targets never overwrite.
func (p *Projection) addOneOffRenames(plan *Plan, table string, part *classify.Partition, consumed map[string]struct{}) {
	mappings := p.rules.RenamesFor(table)
	if len(mappings) == 0 {
		return
	}

	caseMap := make(map[string]string, len(part.Remaining())+len(part.OneOff))
	for _, col := range part.OneOff {
		caseMap[strings.ToLower(col)] = col
	}
	for _, col := range part.Remaining() {
		caseMap[strings.ToLower(col)] = col
	}

	type group struct {
		target  string
		sources []string
	}
	groups := make(map[string]*group)
	var order []string

	for _, m := range mappings {
		src, ok := caseMap[strings.ToLower(m.Source)]
		if !ok {
			p.logger.Warn("one-off rename source not found in table, skipping",
				"table", table, "source", m.Source)
			continue
		}
		key := strings.ToLower(m.Target)
		g, ok := groups[key]
		if !ok {
			g = &group{target: m.Target}
			// A raw column already named like the target seeds the group:
			// the rename coalesces into it instead of overwriting it.
			if existing, inTable := caseMap[key]; inTable {
				g.sources = append(g.sources, existing)
				consumed[existing] = struct{}{}
			}
			groups[key] = g
			order = append(order, key)
		}
		g.sources = append(g.sources, src)
		consumed[src] = struct{}{}
	}

	sort.Strings(order)
	for _, key := range order {
		g := groups[key]
		expr := g.sources[0]
		if len(g.sources) > 1 {
			expr = coalesce(g.sources)
		}
		plan.Add(OutputClause{OutputName: g.target, Expr: expr, Sources: g.sources})
	}
}

// addExcisionMerges coalesces distinct raw columns that reduce to the same
// name once the configured substrings are removed. COALESCE argument order
// is fewest-substrings-removed first, then lexicographic, so the cleanest
// original name wins where values overlap. Columns whose excised name is
// unique stay unclaimed for the grammar step.
func (p *Projection) addExcisionMerges(plan *Plan, part *classify.Partition, consumed map[string]struct{}) {
	type member struct {
		col     string
		removed int
	}
	groups := make(map[string][]member)
	var order []string

	for _, col := range part.Remaining() {
		if _, taken := consumed[col]; taken {
			continue
		}
		excised, removed := exciseCounting(col, p.rules.SubstringsToFix)
		if excised == "" {
			continue
		}
		key := strings.ToLower(excised)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], member{col: col, removed: removed})
	}

	sort.Strings(order)
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].removed != members[j].removed {
				return members[i].removed < members[j].removed
			}
			return members[i].col < members[j].col
		})
		sources := make([]string, len(members))
		for i, m := range members {
			sources[i] = m.col
			consumed[m.col] = struct{}{}
		}
		name := grammar.StandardizeCase(grammar.ExciseSubstrings(members[0].col, p.rules.SubstringsToFix), p.rules.PrimaryKey)
		plan.Add(OutputClause{OutputName: name, Expr: coalesce(sources), Sources: sources})
	}
}

// addCustomTransforms renders the table-scoped transform templates. Targets
// already claimed by an earlier step are skipped by the plan's uniqueness
// enforcement.
func (p *Projection) addCustomTransforms(plan *Plan, table string, consumed map[string]struct{}) error {
	for _, tr := range p.rules.TransformsFor(table) {
		clauses, err := RenderTransform(tr)
		if err != nil {
			return fmt.Errorf("custom transform for table %s: %w", table, err)
		}
		for _, clause := range clauses {
			plan.Add(clause)
		}
		for _, src := range tr.Source {
			consumed[src] = struct{}{}
		}
	}
	return nil
}

// addGrammarColumns handles whatever remains: loop variables grouped by
// (concept set, loop number, version) and non-loop passthroughs. Output
// names are synthesized from the representative member's concept-ID order,
// cleaned of the configured substrings, and lowercased (primary key
// excepted).
func (p *Projection) addGrammarColumns(plan *Plan, part *classify.Partition, consumed map[string]struct{}) error {
	remaining := make([]string, 0, len(part.Loop)+len(part.Passthrough))
	for _, col := range part.Remaining() {
		if _, taken := consumed[col]; taken {
			continue
		}
		remaining = append(remaining, col)
	}

	if err := p.classifier.EnsurePure(remaining); err != nil {
		return err
	}

	groups := grammar.GroupByConceptsLoopVersion(remaining)

	grouped := make(map[string]struct{})
	for _, members := range groups {
		for _, m := range members {
			grouped[m] = struct{}{}
		}
	}

	type synthClause struct {
		name   string
		clause OutputClause
	}
	var synths []synthClause

	for _, key := range grammar.SortedGroupKeys(groups) {
		members := groups[key]
		name := p.synthesizeName(members[0], key)
		sources := append([]string(nil), members...)
		sort.Strings(sources)
		expr := sources[0]
		if len(sources) > 1 {
			expr = coalesce(sources)
		}
		synths = append(synths, synthClause{name: name, clause: OutputClause{
			OutputName: name,
			Expr:       expr,
			Sources:    sources,
		}})
	}

	for _, col := range remaining {
		if _, isLoop := grouped[col]; isLoop {
			continue
		}
		name := grammar.StandardizeCase(grammar.ExciseSubstrings(col, p.rules.SubstringsToFix), p.rules.PrimaryKey)
		if name == "" {
			p.logger.Warn("column name empty after substring excision, skipping", "column", col)
			continue
		}
		synths = append(synths, synthClause{name: name, clause: OutputClause{
			OutputName: name,
			Expr:       col,
			Sources:    []string{col},
		}})
	}

	sort.Slice(synths, func(i, j int) bool { return synths[i].name < synths[j].name })
	for _, s := range synths {
		plan.Add(s.clause)
	}
	return nil
}

// synthesizeName builds the output name for a loop group: d_<id> joined in
// order of appearance in the representative member (duplicates kept, since
// order and multiplicity carry meaning), the loop number, then the version
// suffix verbatim.
func (p *Projection) synthesizeName(representative string, key grammar.GroupKey) string {
	ids := grammar.ExtractOrderedConceptIDs(grammar.StripVersionSuffix(representative))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "d_"+id)
	}
	raw := fmt.Sprintf("%s_%d%s", strings.Join(parts, "_"), key.Loop, key.Version)
	fixed := grammar.ExciseSubstrings(raw, p.rules.SubstringsToFix)
	return grammar.StandardizeCase(fixed, p.rules.PrimaryKey)
}

// exciseCounting removes the substrings from name and reports how many
// occurrences were removed.
func exciseCounting(name string, substrings []string) (string, int) {
	removed := 0
	for _, sub := range substrings {
		if sub == "" {
			continue
		}
		removed += strings.Count(name, sub)
		name = strings.ReplaceAll(name, sub, "")
	}
	return name, removed
}

// coalesce renders an N-ary COALESCE over the given columns.
func coalesce(cols []string) string {
	return "COALESCE(" + strings.Join(cols, ", ") + ")"
}

// CreateOrReplace wraps a plan's SELECT list into the final statement.
func CreateOrReplace(destination, source string, plan *Plan) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS (\nSELECT\n    %s\nFROM %s\n)",
		quoteTable(destination), plan.SelectList("    "), quoteTable(source))
}

// quoteTable backtick-quotes a fully qualified table name.
func quoteTable(table string) string {
	return "`" + table + "`"
}
