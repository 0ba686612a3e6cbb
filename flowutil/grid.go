package flowutil

import "github.com/0xVanfer/tg-flow/flow"

// Grid lays buttons out in rows of fixed width.
type Grid struct {
	PerRow int // Buttons per row, defaults to 2
}

// NewGrid creates a grid with perRow buttons per row.
func NewGrid(perRow int) Grid {
	return Grid{PerRow: perRow}
}

// Build places items in rows between optional header and footer rows.
// The last row may be shorter than PerRow.
func (g Grid) Build(items []flow.Button, header, footer flow.Keyboard) flow.Keyboard {
	perRow := g.PerRow
	if perRow <= 0 {
		perRow = 2
	}

	kb := make(flow.Keyboard, 0, len(header)+len(items)/perRow+1+len(footer))
	kb = append(kb, header...)
	var row []flow.Button
	for _, item := range items {
		row = append(row, item)
		if len(row) == perRow {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return append(kb, footer...)
}
