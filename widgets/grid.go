package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gridbeat/grid"
	"gridbeat/theme"
)

// GridView describes one frame of the pattern editor
type GridView struct {
	Grid      grid.Grid
	Playhead  int // -1 hides the playhead
	CursorRow int
	CursorCol int
	Focused   bool // draw the cursor
}

const labelWidth = 14

// RenderGrid draws the 4x8 grid with instrument labels and a step ruler
func RenderGrid(th *theme.Theme, v GridView) string {
	muted := lipgloss.NewStyle().Foreground(th.Muted())
	cursor := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	playhead := lipgloss.NewStyle().Foreground(th.Success())

	var lines []string

	var ruler strings.Builder
	ruler.WriteString(strings.Repeat(" ", labelWidth))
	for col := 0; col < grid.Cols; col++ {
		label := fmt.Sprintf("%d ", col+1)
		if col == v.Playhead {
			ruler.WriteString(playhead.Render(label))
		} else {
			ruler.WriteString(muted.Render(label))
		}
	}
	lines = append(lines, ruler.String())

	for row := 0; row < grid.Rows; row++ {
		inst := grid.InstrumentForRow(row)
		hit := lipgloss.NewStyle().Foreground(th.Instrument(inst))

		var line strings.Builder
		line.WriteString(hit.Render(fmt.Sprintf("%-*s", labelWidth, inst)))
		for col := 0; col < grid.Cols; col++ {
			on := v.Grid[row][col]
			here := v.Focused && row == v.CursorRow && col == v.CursorCol
			sym := cellSymbol(th.Symbols, on, col == v.Playhead, here)

			style := muted
			switch {
			case here:
				style = cursor
			case on:
				style = hit
			case col == v.Playhead:
				style = playhead
			}
			line.WriteString(style.Render(string(sym)))
			line.WriteString(" ")
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

func cellSymbol(s theme.Symbols, on, atPlayhead, atCursor bool) rune {
	switch {
	case atCursor && on:
		return s.CursorActive
	case atCursor && atPlayhead:
		return s.CursorPlayhead
	case atCursor:
		return s.CursorEmpty
	case on:
		return s.StepActive
	case atPlayhead:
		return s.StepPlayhead
	default:
		return s.StepEmpty
	}
}
