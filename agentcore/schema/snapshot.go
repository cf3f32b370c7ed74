// Package schema provides the immutable schema snapshot handed to the
// refinement loop, plus introspection to build one from a live database.
package schema

import (
	"fmt"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	NotNull    bool   `json:"not_null,omitempty"`
}

// Table describes one table: ordered columns plus a row count taken at
// snapshot time.
type Table struct {
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// Snapshot is a structural description of the target database. It is
// constructed once per run and read-only for the run's lifetime, so
// concurrent runs may share it freely.
type Snapshot struct {
	tables []Table
}

// NewSnapshot creates a Snapshot from tables. The input is copied so later
// mutation by the caller cannot leak into the snapshot.
func NewSnapshot(tables []Table) *Snapshot {
	copied := make([]Table, len(tables))
	for i, t := range tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		copied[i] = Table{Name: t.Name, Columns: cols, RowCount: t.RowCount}
	}
	return &Snapshot{tables: copied}
}

// Tables returns a copy of the table list.
func (s *Snapshot) Tables() []Table {
	out := make([]Table, len(s.tables))
	copy(out, s.tables)
	return out
}

// Table looks up a table by name.
func (s *Snapshot) Table(name string) (Table, bool) {
	for _, t := range s.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Empty reports whether the snapshot contains no tables.
func (s *Snapshot) Empty() bool {
	return len(s.tables) == 0
}

// Len returns the number of tables.
func (s *Snapshot) Len() int {
	return len(s.tables)
}

// Render formats the snapshot as the prompt block consumed by the generator.
func (s *Snapshot) Render() string {
	var b strings.Builder
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	for _, t := range s.tables {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		b.WriteString(strings.Repeat("-", 40))
		b.WriteString("\n")

		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)", c.Name, c.Type)
			if c.PrimaryKey {
				b.WriteString(" [PRIMARY KEY]")
			}
			if c.NotNull {
				b.WriteString(" [NOT NULL]")
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "  Total rows: %d\n\n", t.RowCount)
	}

	return b.String()
}
