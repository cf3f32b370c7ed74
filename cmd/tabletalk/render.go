package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tabletalk-labs/tabletalk/agentcore/executor"
	"github.com/tabletalk-labs/tabletalk/agentcore/pipeline"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
)

func renderRowSet(w io.Writer, rows *executor.RowSet, format string) error {
	switch format {
	case "json":
		return renderRowsJSON(w, rows)
	case "csv":
		return renderRowsCSV(w, rows)
	case "md", "markdown":
		return renderRowsMarkdown(w, rows)
	default:
		return renderRowsTable(w, rows)
	}
}

func renderRowsTable(w io.Writer, rows *executor.RowSet) error {
	if rows.Empty() {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(rows.Columns))
	for i, col := range rows.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", rows.Len())
	return nil
}

func renderRowsJSON(w io.Writer, rows *executor.RowSet) error {
	results := make([]map[string]any, 0, rows.Len())
	for _, r := range rows.Rows {
		row := make(map[string]any, len(rows.Columns))
		for i, col := range rows.Columns {
			if i < len(r) {
				row[col] = r[i]
			}
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderRowsCSV(w io.Writer, rows *executor.RowSet) error {
	_, _ = fmt.Fprintln(w, strings.Join(rows.Columns, ","))
	for _, r := range rows.Rows {
		values := make([]string, len(r))
		for i, v := range r {
			values[i] = escapeCSV(formatValue(v))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderRowsMarkdown(w io.Writer, rows *executor.RowSet) error {
	if rows.Empty() {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(rows.Columns, " | "))
	seps := make([]string, len(rows.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows.Rows {
		values := make([]string, len(r))
		for i, v := range r {
			values[i] = formatValue(v)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func renderAnswerJSON(w io.Writer, answer *pipeline.Answer, showSQL bool) error {
	out := *answer
	if !showSQL {
		out.Statement = ""
		out.Rows = nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

func renderSnapshotTable(w io.Writer, snap *schema.Snapshot) {
	for _, tbl := range snap.Tables() {
		_, _ = fmt.Fprintf(w, "Table: %s (%d rows)\n", tbl.Name, tbl.RowCount)

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Column", "Type", "Constraints"})

		for _, col := range tbl.Columns {
			var constraints []string
			if col.PrimaryKey {
				constraints = append(constraints, "PRIMARY KEY")
			}
			if col.NotNull {
				constraints = append(constraints, "NOT NULL")
			}
			t.AppendRow(table.Row{col.Name, col.Type, strings.Join(constraints, ", ")})
		}
		t.Render()
		_, _ = fmt.Fprintln(w)
	}
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
