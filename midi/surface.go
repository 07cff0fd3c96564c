package midi

import (
	"context"
	"time"

	"gridbeat/debug"
	"gridbeat/grid"
	"gridbeat/sequencer"
)

// LED refresh rate
const ledFPS = 30

// Pads outside the pattern area
const (
	padPlayRow, padPlayCol   = 0, 0
	padClearRow, padClearCol = 0, 7
)

// GridEditor is the part of the grid store a surface needs
type GridEditor interface {
	Snapshot() grid.Grid
	Toggle(row, col int) error
	Reset()
}

// Transport is the part of the sequencer a surface needs
type Transport interface {
	Toggle() sequencer.State
	GetState() (playhead int, playing bool, bpm int)
}

// Palette holds the LED colours a surface draws with
type Palette struct {
	Rows     [grid.Rows][3]uint8 // active cell, per instrument
	Empty    [3]uint8
	Playhead [3]uint8
	Play     [3]uint8
	Clear    [3]uint8
}

var DefaultPalette = Palette{
	Rows: [grid.Rows][3]uint8{
		{255, 200, 0},
		{0, 200, 200},
		{255, 80, 180},
		{255, 0, 0},
	},
	Empty:    [3]uint8{40, 60, 120},
	Playhead: [3]uint8{255, 255, 255},
	Play:     [3]uint8{0, 255, 0},
	Clear:    [3]uint8{255, 100, 0},
}

// Surface mirrors the grid onto the top 4 rows of a Launchpad and turns pad
// presses into grid toggles. Grid row 0 sits on the top pad row.
type Surface struct {
	ctrl      Controller
	grid      GridEditor
	transport Transport
	palette   Palette

	prev map[[2]int]LEDUpdate
}

func NewSurface(ctrl Controller, g GridEditor, t Transport, p Palette) *Surface {
	return &Surface{
		ctrl:      ctrl,
		grid:      g,
		transport: t,
		palette:   p,
		prev:      make(map[[2]int]LEDUpdate),
	}
}

// padToCell maps a pad to a grid cell; ok is false outside the pattern area
func padToCell(row, col int) (gridRow, gridCol int, ok bool) {
	gridRow = 7 - row
	if gridRow < 0 || gridRow >= grid.Rows || col < 0 || col >= grid.Cols {
		return 0, 0, false
	}
	return gridRow, col, true
}

func cellToPad(gridRow, gridCol int) (row, col int) {
	return 7 - gridRow, gridCol
}

// HandlePad applies one pad press
func (s *Surface) HandlePad(ev PadEvent) {
	if r, c, ok := padToCell(ev.Row, ev.Col); ok {
		if err := s.grid.Toggle(r, c); err != nil {
			debug.Warn("surface", "toggle failed", "err", err)
		}
		return
	}
	switch {
	case ev.Row == padPlayRow && ev.Col == padPlayCol:
		state := s.transport.Toggle()
		debug.Log("surface", "transport", "state", state)
	case ev.Row == padClearRow && ev.Col == padClearCol:
		s.grid.Reset()
	}
}

// RenderLEDs returns the full LED picture for a grid and transport state
func (s *Surface) RenderLEDs(g grid.Grid, playhead int, playing bool) []LEDUpdate {
	var leds []LEDUpdate
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			row, col := cellToPad(r, c)
			led := LEDUpdate{Row: row, Col: col, Color: s.palette.Empty, Channel: ChannelStatic}
			if g[r][c] {
				led.Color = s.palette.Rows[r]
			}
			if playing && c == playhead {
				led.Color = s.palette.Playhead
				led.Channel = ChannelPulse
				if g[r][c] {
					led.Color = s.palette.Rows[r]
				}
			}
			leds = append(leds, led)
		}
	}

	play := LEDUpdate{Row: padPlayRow, Col: padPlayCol, Color: s.palette.Play, Channel: ChannelStatic}
	if playing {
		play.Channel = ChannelPulse
	}
	leds = append(leds, play,
		LEDUpdate{Row: padClearRow, Col: padClearCol, Color: s.palette.Clear, Channel: ChannelStatic})
	return leds
}

// diff returns only the LEDs that changed since the previous flush
func (s *Surface) diff(leds []LEDUpdate) []LEDUpdate {
	next := make(map[[2]int]LEDUpdate, len(leds))
	var updates []LEDUpdate
	for _, led := range leds {
		key := [2]int{led.Row, led.Col}
		next[key] = led
		if prev, ok := s.prev[key]; !ok || prev != led {
			updates = append(updates, led)
		}
	}
	for key := range s.prev {
		if _, ok := next[key]; !ok {
			updates = append(updates, LEDUpdate{Row: key[0], Col: key[1]})
		}
	}
	s.prev = next
	return updates
}

func (s *Surface) flush() {
	playhead, playing, _ := s.transport.GetState()
	updates := s.diff(s.RenderLEDs(s.grid.Snapshot(), playhead, playing))
	if len(updates) == 0 {
		return
	}
	if err := s.ctrl.SetLEDBatch(updates); err != nil {
		debug.Warn("surface", "led update failed", "err", err)
	}
}

// Run routes pad presses and refreshes LEDs at a fixed rate until ctx is
// done or the controller closes its pad channel
func (s *Surface) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	pads := s.ctrl.PadEvents()
	s.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-pads:
			if !ok {
				return
			}
			s.HandlePad(ev)
			s.flush()
		case <-ticker.C:
			s.flush()
		}
	}
}
