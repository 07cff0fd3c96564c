package grid

import "strings"

const (
	Rows = 4
	Cols = 8
)

// Instrument is one of the 4 percussion roles bound to grid rows
type Instrument int

const (
	OpenHiHat Instrument = iota
	ClosedHiHat
	Snare
	Kick
)

// Instruments in row order
var Instruments = [Rows]Instrument{OpenHiHat, ClosedHiHat, Snare, Kick}

var instrumentNames = [Rows]string{
	"Open Hi-Hat",
	"Closed Hi-Hat",
	"Snare",
	"Kick",
}

func (i Instrument) String() string {
	if i < 0 || int(i) >= Rows {
		return "unknown"
	}
	return instrumentNames[i]
}

// Row returns the grid row this instrument is bound to
func (i Instrument) Row() int {
	return int(i)
}

// InstrumentForRow returns the instrument bound to a grid row
func InstrumentForRow(row int) Instrument {
	return Instruments[row]
}

// Grid is the 4x8 matrix of active cells. It is a value type; copying it
// yields an independent snapshot.
type Grid [Rows][Cols]bool

// Empty returns an all-false grid
func Empty() Grid {
	return Grid{}
}

// FromRows validates an externally supplied matrix and converts it.
// Anything other than exactly 4 rows of exactly 8 cells is rejected.
func FromRows(rows [][]bool) (Grid, error) {
	var g Grid
	if len(rows) != Rows {
		return g, &ShapeMismatchError{Rows: len(rows), Row: -1}
	}
	for r, row := range rows {
		if len(row) != Cols {
			return g, &ShapeMismatchError{Rows: len(rows), Row: r, Cols: len(row)}
		}
	}
	for r, row := range rows {
		copy(g[r][:], row)
	}
	return g, nil
}

// Slices returns the grid as nested slices (for JSON and external callers)
func (g Grid) Slices() [][]bool {
	out := make([][]bool, Rows)
	for r := range g {
		out[r] = append([]bool(nil), g[r][:]...)
	}
	return out
}

// Column returns the instruments active on a step, in row order
func (g Grid) Column(col int) []Instrument {
	var out []Instrument
	for r := 0; r < Rows; r++ {
		if g[r][col] {
			out = append(out, InstrumentForRow(r))
		}
	}
	return out
}

// Count returns the number of active cells
func (g Grid) Count() int {
	n := 0
	for r := range g {
		for c := range g[r] {
			if g[r][c] {
				n++
			}
		}
	}
	return n
}

// String renders one line per instrument, e.g. "Kick          |x---|x---|"
func (g Grid) String() string {
	var b strings.Builder
	for r := range g {
		b.WriteString(padRight(InstrumentForRow(r).String(), 14))
		for c, on := range g[r] {
			if c%4 == 0 {
				b.WriteByte('|')
			}
			if on {
				b.WriteByte('x')
			} else {
				b.WriteByte('-')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func inRange(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}
