package heatmap

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// WriteTable prints the selected series as a terminal table, one row per
// volatility sample and one column per spot sample.
func WriteTable(w io.Writer, grid *Grid, series Series) {
	t := NewTable(grid, series)

	fmt.Fprintf(w, "%s options, max $%.2f\n", series, t.MaxPrice)
	if t.Warning != "" {
		fmt.Fprintf(w, "WARNING: %s\n", t.Warning)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{"Vol \\ Stock"}, t.SpotLabels...))
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for _, row := range t.Rows {
		line := make([]string, 0, len(row.Cells)+1)
		line = append(line, row.Label)
		for _, cell := range row.Cells {
			line = append(line, cell.Text)
		}
		table.Append(line)
	}

	table.Render()
}
