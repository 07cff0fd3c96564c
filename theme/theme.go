package theme

import (
	"github.com/charmbracelet/lipgloss"

	"gridbeat/grid"
	"gridbeat/midi"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	StepEmpty    rune // · inactive cell
	StepActive   rune // ● marker
	StepPlayhead rune // ▶ playhead over an empty cell

	CursorEmpty    rune // ○
	CursorActive   rune // ◉
	CursorPlayhead rune // ▷
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepActive:   '●',
			StepPlayhead: '▶',

			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// instrumentRoles spreads the 4 rows across the warm end of the palette
var instrumentRoles = [grid.Rows]float64{0.95, 0.8, 0.65, 0.5}

func (t *Theme) BG() lipgloss.Color      { return color(t.Palette.Lookup(RoleBG)) }
func (t *Theme) FG() lipgloss.Color      { return color(t.Palette.Lookup(RoleFG)) }
func (t *Theme) Accent() lipgloss.Color  { return color(t.Palette.Lookup(RoleAccent)) }
func (t *Theme) Muted() lipgloss.Color   { return color(t.Palette.Lookup(RoleMuted)) }
func (t *Theme) Active() lipgloss.Color  { return color(t.Palette.Lookup(RoleActive)) }
func (t *Theme) Cursor() lipgloss.Color  { return color(t.Palette.Lookup(RoleCursor)) }
func (t *Theme) Warning() lipgloss.Color { return color(t.Palette.Lookup(RoleWarning)) }
func (t *Theme) Success() lipgloss.Color { return color(t.Palette.Lookup(RoleSuccess)) }

// Instrument returns the colour of an instrument's row
func (t *Theme) Instrument(inst grid.Instrument) lipgloss.Color {
	return color(t.InstrumentRGB(inst))
}

// InstrumentRGB is Instrument as raw RGB (for Launchpad LEDs)
func (t *Theme) InstrumentRGB(inst grid.Instrument) RGB {
	return t.Palette.Lookup(instrumentRoles[inst.Row()])
}

// Surface builds the Launchpad LED palette from the theme
func (t *Theme) Surface() midi.Palette {
	p := midi.DefaultPalette
	for _, inst := range grid.Instruments {
		p.Rows[inst.Row()] = t.InstrumentRGB(inst)
	}
	p.Empty = t.Palette.Lookup(RoleMuted).Scale(0.5)
	p.Play = t.Palette.Lookup(RoleSuccess)
	p.Clear = t.Palette.Lookup(RoleWarning)
	return p
}

func color(c RGB) lipgloss.Color {
	return lipgloss.Color(c.Hex())
}
