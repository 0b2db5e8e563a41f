// Package warehouse wraps database access for the cleaning pipeline:
// qualified table names, column metadata lookups, and statement execution.
package warehouse

import (
	"fmt"
	"strings"
)

// Table is a fully qualified table reference: project.dataset.table.
type Table struct {
	Project string
	Dataset string
	Name    string
}

// ParseQualifiedTable splits a project.dataset.table string. All three
// parts are required and must be non-empty.
func ParseQualifiedTable(fq string) (Table, error) {
	parts := strings.Split(fq, ".")
	if len(parts) != 3 {
		return Table{}, fmt.Errorf("invalid table %q: want project.dataset.table", fq)
	}
	for _, p := range parts {
		if p == "" {
			return Table{}, fmt.Errorf("invalid table %q: empty component", fq)
		}
	}
	return Table{Project: parts[0], Dataset: parts[1], Name: parts[2]}, nil
}

// FQN returns the dotted project.dataset.table form.
func (t Table) FQN() string {
	return t.Project + "." + t.Dataset + "." + t.Name
}

func (t Table) String() string {
	return t.FQN()
}

// Sibling returns a table in the same project and dataset.
func (t Table) Sibling(name string) Table {
	return Table{Project: t.Project, Dataset: t.Dataset, Name: name}
}
