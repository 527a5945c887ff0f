package heatmap

import "fmt"

// TableCell is a display-ready grid cell.
type TableCell struct {
	Text   string  `json:"text"`
	Title  string  `json:"title"`
	Color  string  `json:"color,omitempty"`
	Price  float64 `json:"price"`
	Failed bool    `json:"failed,omitempty"`
}

// TableRow is one volatility row.
type TableRow struct {
	Label string      `json:"label"`
	Cells []TableCell `json:"cells"`
}

// Table is the render model shared by the HTML view and the terminal output.
// The color scale is normalised against the selected series only.
type Table struct {
	Series      Series     `json:"series"`
	SpotLabels  []string   `json:"stock_price_labels"`
	Rows        []TableRow `json:"rows"`
	MaxPrice    float64    `json:"max_price"`
	Warning     string     `json:"warning,omitempty"`
	FailedCells int        `json:"failed_cells"`
}

// NewTable renders grid for series. Rows run from the lowest volatility up.
func NewTable(grid *Grid, series Series) Table {
	matrix := grid.Series(series)
	max := matrix.Max()

	table := Table{
		Series:     series,
		SpotLabels: make([]string, Size),
		Rows:       make([]TableRow, Size),
		MaxPrice:   max,
		Warning:    grid.Warning,
	}
	for col, spot := range grid.Spots {
		table.SpotLabels[col] = SpotLabel(spot)
	}

	for row, vol := range grid.Volatilities {
		volLabel := VolatilityLabel(vol)
		cells := make([]TableCell, Size)
		for col, cell := range matrix[row] {
			tc := TableCell{Price: cell.Price, Failed: cell.Failed}
			if cell.Failed {
				tc.Text = "--"
				tc.Title = fmt.Sprintf("Stock: %s, Vol: %s, pricing failed", table.SpotLabels[col], volLabel)
				table.FailedCells++
			} else {
				tc.Text = fmt.Sprintf("$%.1f", cell.Price)
				tc.Title = fmt.Sprintf("Stock: %s, Vol: %s, Price: $%.2f", table.SpotLabels[col], volLabel, cell.Price)
				tc.Color = ColorFor(cell.Price, max).String()
			}
			cells[col] = tc
		}
		table.Rows[row] = TableRow{Label: volLabel, Cells: cells}
	}

	return table
}

// SpotLabel formats a spot axis sample, e.g. "$70".
func SpotLabel(spot float64) string {
	return fmt.Sprintf("$%.0f", spot)
}

// VolatilityLabel formats a volatility sample as a whole percentage.
func VolatilityLabel(vol float64) string {
	return fmt.Sprintf("%.0f%%", round(vol*100, 0))
}
