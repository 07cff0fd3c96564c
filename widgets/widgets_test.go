package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"gridbeat/grid"
	"gridbeat/theme"
)

func plain(s string) string {
	return strings.TrimRight(s, " ")
}

func TestRenderGrid(t *testing.T) {
	th := theme.New(theme.DefaultPalette())
	var g grid.Grid
	g[3][0] = true
	g[0][2] = true

	out := RenderGrid(th, GridView{Grid: g, Playhead: 4, CursorRow: 1, CursorCol: 1, Focused: true})
	lines := strings.Split(out, "\n")
	if len(lines) != grid.Rows+1 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, want := range []string{
		"Open Hi-Hat   · · ● · ▶ · · ·",
		"Closed Hi-Hat · ○ · · ▶ · · ·",
		"Snare         · · · · ▶ · · ·",
		"Kick          ● · · · ▶ · · ·",
	} {
		if got := plain(stripANSI(lines[i+1])); got != want {
			t.Errorf("row %d = %q, want %q", i, got, want)
		}
	}
	if w := lipgloss.Width(lines[0]); w != labelWidth+2*grid.Cols {
		t.Errorf("ruler width %d", w)
	}
}

func TestCellSymbolPriority(t *testing.T) {
	s := theme.New(theme.DefaultPalette()).Symbols
	tests := []struct {
		on, play, cur bool
		want          rune
	}{
		{false, false, false, s.StepEmpty},
		{true, false, false, s.StepActive},
		{true, true, false, s.StepActive},
		{false, true, false, s.StepPlayhead},
		{false, false, true, s.CursorEmpty},
		{true, true, true, s.CursorActive},
		{false, true, true, s.CursorPlayhead},
	}
	for _, tt := range tests {
		if got := cellSymbol(s, tt.on, tt.play, tt.cur); got != tt.want {
			t.Errorf("cellSymbol(%v,%v,%v) = %c, want %c", tt.on, tt.play, tt.cur, got, tt.want)
		}
	}
}

func TestRenderKeyLine(t *testing.T) {
	got := RenderKeyLine([]KeyBinding{{"p", "play"}, {"q", "quit"}})
	if got != "p:play  q:quit" {
		t.Fatalf("got %q", got)
	}
}

// stripANSI drops SGR escape sequences
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
