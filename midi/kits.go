package midi

import "gridbeat/grid"

// DrumKit maps the 4 grid instruments to MIDI notes, in row order
type DrumKit struct {
	Name  string
	Notes [grid.Rows]uint8
}

// Note returns the MIDI note for an instrument
func (k DrumKit) Note(inst grid.Instrument) uint8 {
	return k.Notes[inst.Row()]
}

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name: "General MIDI",
		Notes: [grid.Rows]uint8{
			46, // Open HH
			42, // Closed HH
			38, // Snare
			36, // Kick
		},
	},
	"rd8": {
		Name: "Behringer RD-8",
		Notes: [grid.Rows]uint8{
			46, // Open HH (OH)
			42, // Closed HH (CH)
			40, // Snare (SD) - RD-8 uses 40, not 38
			36, // Kick (BD)
		},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [grid.Rows]uint8{46, 42, 38, 36},
	},
	"er1": {
		Name: "Korg ER-1",
		Notes: [grid.Rows]uint8{
			46, // Open HH (PCM)
			42, // Closed HH (PCM)
			38, // Perc Synth 2
			36, // Perc Synth 1
		},
	},
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}
