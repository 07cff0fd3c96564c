package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"gridbeat/debug"
	"gridbeat/grid"
)

// DrumChannel is GM channel 10
const DrumChannel uint8 = 9

const (
	noteVelocity = 100
	gateTime     = 50 * time.Millisecond
)

// Clock is the time base triggers are expressed in
type Clock interface {
	Now() time.Duration
}

// Bank sends each trigger as a NoteOn/NoteOff pair to a MIDI output
type Bank struct {
	send    func(msg gomidi.Message) error
	clock   Clock
	kit     DrumKit
	channel uint8
	close   func()
}

// NewBank wraps an already opened sender
func NewBank(send func(gomidi.Message) error, clock Clock, kit DrumKit) *Bank {
	return &Bank{
		send:    send,
		clock:   clock,
		kit:     kit,
		channel: DrumChannel,
	}
}

// OpenBank finds an output port by name and sends drum notes to it
func OpenBank(portName string, clock Clock, kit DrumKit) (*Bank, error) {
	out, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", portName, err)
	}
	debug.Log("midi", "drum output", "port", out.String(), "kit", kit.Name)
	b := NewBank(send, clock, kit)
	b.close = func() { out.Close() }
	return b, nil
}

// Trigger implements sequencer.SoundBank
func (b *Bank) Trigger(inst grid.Instrument, at time.Duration) {
	note := b.kit.Note(inst)
	fire := func() {
		if err := b.send(gomidi.NoteOn(b.channel, note, noteVelocity)); err != nil {
			debug.Warn("midi", "note on failed", "note", note, "err", err)
			return
		}
		time.AfterFunc(gateTime, func() {
			b.send(gomidi.NoteOff(b.channel, note))
		})
	}

	if delay := at - b.clock.Now(); delay > 0 {
		time.AfterFunc(delay, fire)
		return
	}
	fire()
}

// Close releases the output port
func (b *Bank) Close() error {
	if b.close != nil {
		b.close()
	}
	return nil
}

// OutPortNames lists MIDI output ports
func OutPortNames() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}
