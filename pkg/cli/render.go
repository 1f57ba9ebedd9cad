package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"go-pgcli/pkg/db"
)

// RenderResult writes a result to w: a psql-style table with a row-count
// footer for row sets, an affected-count line for everything else.
func RenderResult(w io.Writer, result *db.Result) {
	if result == nil {
		return
	}
	if !result.HasRows {
		fmt.Fprintf(w, "Query executed successfully. %d row(s) affected.\n", result.RowsAffected)
		return
	}

	if len(result.Rows) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)

		header := make(table.Row, len(result.Columns))
		for i, col := range result.Columns {
			header[i] = col
		}
		t.AppendHeader(header)

		for _, row := range result.Rows {
			tr := make(table.Row, len(row))
			for i, cell := range row {
				tr[i] = cell
			}
			t.AppendRow(tr)
		}
		t.Render()
	}

	fmt.Fprintf(w, "(%d row%s)\n", len(result.Rows), plural(len(result.Rows)))
}

// plural returns "s" if n != 1, empty string otherwise.
func plural(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}
