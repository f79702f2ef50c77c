// Package format renders engine responses for the terminal.
package format

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/aisavvy/aisavvy/internal/executor"
)

// Table writes a result set as an aligned table.
func Table(w io.Writer, result *executor.Result) {
	if result == nil || len(result.Rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(true)

	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, column := range result.Columns {
			cells[i] = cell(row[column])
		}

		table.Append(cells)
	}

	table.Render()
	fmt.Fprintf(w, "%d row(s)\n", len(result.Rows))
}

// SQL writes the generated statement with a colored heading.
func SQL(w io.Writer, sqlText string, cached bool) {
	heading := "Generated SQL"
	if cached {
		heading = "Generated SQL (cached)"
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, heading)
	fmt.Fprintf(w, "%s\n\n", sqlText)
}

// Errorf writes a failure message in red.
func Errorf(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(w, format+"\n", args...)
}

func cell(value interface{}) string {
	if value == nil {
		return "NULL"
	}

	return fmt.Sprintf("%v", value)
}
