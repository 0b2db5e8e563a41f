package render

import (
	"fmt"
	"sort"
	"strings"
)

// TableColumns pairs a fully qualified table name with its valid column set.
type TableColumns struct {
	Table   string
	Columns []string
}

// BuildMerge renders a CREATE OR REPLACE statement that full-outer-joins
// two or more same-shape tables on the primary key. Columns present in
// every table (case-insensitive) are coalesced in reverse table order;
// columns unique to one table pass through under that table's alias. The
// output is deterministic: common and unique columns are each emitted in
// sorted order.
func BuildMerge(destination string, tables []TableColumns, primaryKey string) (string, error) {
	if destination == "" {
		return "", fmt.Errorf("a destination table is required")
	}
	if len(tables) < 2 {
		return "", fmt.Errorf("at least two source tables are required, got %d", len(tables))
	}

	aliases := make([]string, len(tables))
	byAlias := make([]map[string]string, len(tables)) // lower -> original case
	for i, tc := range tables {
		if len(tc.Columns) == 0 {
			return "", fmt.Errorf("no columns retrieved from table: %s", tc.Table)
		}
		aliases[i] = fmt.Sprintf("v%d", i+1)
		m := make(map[string]string, len(tc.Columns))
		for _, col := range tc.Columns {
			m[strings.ToLower(col)] = col
		}
		byAlias[i] = m
	}

	// Common columns: present in every table.
	var common []string
	for lower := range byAlias[0] {
		inAll := true
		for _, m := range byAlias[1:] {
			if _, ok := m[lower]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, lower)
		}
	}
	sort.Strings(common)
	commonSet := make(map[string]struct{}, len(common))
	for _, c := range common {
		commonSet[c] = struct{}{}
	}

	var selectClauses []string

	if len(common) > 0 {
		selectClauses = append(selectClauses, "-- Coalesced common columns")
		for _, lower := range common {
			args := make([]string, 0, len(tables))
			for i := len(tables) - 1; i >= 0; i-- {
				args = append(args, aliases[i]+"."+byAlias[i][lower])
			}
			out := byAlias[0][lower]
			selectClauses = append(selectClauses,
				fmt.Sprintf("COALESCE(%s) AS %s", strings.Join(args, ", "), out))
		}
	}

	for i := range tables {
		var unique []string
		for lower, col := range byAlias[i] {
			if _, ok := commonSet[lower]; !ok {
				unique = append(unique, col)
			}
		}
		if len(unique) == 0 {
			continue
		}
		sort.Strings(unique)
		selectClauses = append(selectClauses, fmt.Sprintf("-- Unique columns from %s", aliases[i]))
		for _, col := range unique {
			selectClauses = append(selectClauses, aliases[i]+"."+col)
		}
	}

	baseIdx := len(tables) - 1
	fromClause := fmt.Sprintf("%s %s", quoteTable(tables[baseIdx].Table), aliases[baseIdx])

	var joinClauses []string
	for i := baseIdx - 1; i >= 0; i-- {
		joinClauses = append(joinClauses, fmt.Sprintf(
			"FULL OUTER JOIN %s %s\nON %s.%s = %s.%s",
			quoteTable(tables[i].Table), aliases[i],
			aliases[baseIdx], primaryKey, aliases[i], primaryKey))
	}

	inner := fmt.Sprintf("SELECT\n    %s\nFROM\n    %s\n    %s",
		strings.Join(selectClauses, ",\n    "),
		fromClause,
		strings.Join(joinClauses, "\n    "))

	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS (%s)", quoteTable(destination), inner), nil
}
