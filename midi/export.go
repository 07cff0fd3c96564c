package midi

import (
	"fmt"
	"io"
	"os"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"gridbeat/grid"
	"gridbeat/sequencer"
)

// ExportOptions control .mid export
type ExportOptions struct {
	BPM  int // clamped to the sequencer's range, 0 means the default
	Kit  DrumKit
	Bars int // measures to repeat the pattern for, default 1
}

// Pattern converts a grid into a standard MIDI file: one track, one
// eighth-note step per column, drum notes on GM channel 10
func Pattern(g grid.Grid, opts ExportOptions) (*smf.SMF, error) {
	switch {
	case opts.BPM <= 0:
		opts.BPM = sequencer.DefaultBPM
	case opts.BPM < sequencer.MinBPM:
		opts.BPM = sequencer.MinBPM
	case opts.BPM > sequencer.MaxBPM:
		opts.BPM = sequencer.MaxBPM
	}
	if opts.Bars <= 0 {
		opts.Bars = 1
	}
	if opts.Kit.Name == "" {
		opts.Kit = GetKit(DefaultKit)
	}

	file := smf.New()
	clock := file.TimeFormat.(smf.MetricTicks)
	stepTicks := uint32(clock.Ticks4th()) / 2
	gate := stepTicks / 2

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("gridbeat"))
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(float64(opts.BPM)))

	// delta is relative to the previous event
	var delta uint32
	for bar := 0; bar < opts.Bars; bar++ {
		for col := 0; col < grid.Cols; col++ {
			hits := g.Column(col)
			for _, inst := range hits {
				track.Add(delta, gomidi.NoteOn(DrumChannel, opts.Kit.Note(inst), noteVelocity))
				delta = 0
			}
			if len(hits) == 0 {
				delta += stepTicks
				continue
			}
			delta += gate
			for _, inst := range hits {
				track.Add(delta, gomidi.NoteOff(DrumChannel, opts.Kit.Note(inst)))
				delta = 0
			}
			delta = stepTicks - gate
		}
	}
	track.Close(delta)

	if err := file.Add(track); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return file, nil
}

// Export writes the grid as a .mid file to w
func Export(w io.Writer, g grid.Grid, opts ExportOptions) error {
	file, err := Pattern(g, opts)
	if err != nil {
		return err
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

// ExportFile writes the grid to a .mid file on disk
func ExportFile(path string, g grid.Grid, opts ExportOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Export(f, g, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
