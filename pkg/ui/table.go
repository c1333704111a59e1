package ui

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NewTable returns a table writer that renders to w. Plain mode drops the
// box-drawing style.
func NewTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if plain {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
	}
	if title != "" {
		t.SetTitle(title)
	}
	return t
}
