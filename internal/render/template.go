package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/opencohort/colnorm/internal/config"
)

// placeholderRe matches {source}, {target}, {source[N]}, {target[N]}.
var placeholderRe = regexp.MustCompile(`\{(source|target)(?:\[(\d+)\])?\}`)

// RenderTransform expands a custom transform template into output clauses.
// Templates support one-to-one, many-to-one (coalesce), and one-to-many
// (split) mappings; {source} and {target} refer to the first entry of each
// list, {source[N]} and {target[N]} index into them. The rendered text is
// split into one clause per line, with each line aliased to the matching
// target in order.
func RenderTransform(tr config.Transform) ([]OutputClause, error) {
	if len(tr.Source) == 0 || len(tr.Target) == 0 {
		return nil, fmt.Errorf("transform must have at least one source and one target")
	}

	var badRef error
	rendered := placeholderRe.ReplaceAllStringFunc(tr.Template, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		list := tr.Source
		if sub[1] == "target" {
			list = tr.Target
		}
		idx := 0
		if sub[2] != "" {
			idx, _ = strconv.Atoi(sub[2])
		}
		if idx >= len(list) {
			badRef = fmt.Errorf("template references %s[%d] but only %d entries are configured", sub[1], idx, len(list))
			return m
		}
		return list[idx]
	})
	if badRef != nil {
		return nil, badRef
	}

	var lines []string
	for _, line := range strings.Split(rendered, "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("transform template rendered to nothing")
	}
	// A single-target template may span lines (CASE expressions); it
	// collapses to one clause. Multi-target templates must render one
	// clause per line.
	if len(tr.Target) == 1 && len(lines) > 1 {
		lines = []string{strings.Join(lines, " ")}
	}
	if len(lines) != len(tr.Target) {
		return nil, fmt.Errorf("transform rendered %d clauses for %d targets", len(lines), len(tr.Target))
	}

	clauses := make([]OutputClause, len(lines))
	for i, line := range lines {
		expr := line
		// Templates usually carry their own "AS target" alias; strip it so
		// the clause renders consistently.
		if cut, ok := cutAlias(line, tr.Target[i]); ok {
			expr = cut
		}
		clauses[i] = OutputClause{
			OutputName: tr.Target[i],
			Expr:       expr,
			Sources:    append([]string(nil), tr.Source...),
		}
	}
	return clauses, nil
}

// cutAlias removes a trailing "AS <target>" (case-insensitive on the AS
// keyword) from a rendered line.
func cutAlias(line, target string) (string, bool) {
	suffix := " " + target
	if !strings.HasSuffix(line, suffix) {
		return "", false
	}
	trimmed := strings.TrimSuffix(line, suffix)
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(lower, " as") {
		return strings.TrimSpace(trimmed[:len(trimmed)-3]), true
	}
	return "", false
}
