package audio

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"gridbeat/debug"
	"gridbeat/grid"
)

// bufferSize trades latency against underruns on slow machines
const bufferSize = 30 * time.Millisecond

// SynthBank plays synthesised drum voices on the default audio device
type SynthBank struct {
	mixer   *Mixer
	context *oto.Context
	player  *oto.Player
}

// NewSynthBank opens the audio device and starts streaming the mixer
func NewSynthBank(clock Clock) (*SynthBank, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	mixer := NewMixer(clock, SampleRate)
	player := ctx.NewPlayer(mixer)
	player.Play()
	debug.Log("audio", "synth started", "rate", SampleRate, "buffer", bufferSize)

	return &SynthBank{
		mixer:   mixer,
		context: ctx,
		player:  player,
	}, nil
}

// Trigger implements sequencer.SoundBank
func (b *SynthBank) Trigger(inst grid.Instrument, at time.Duration) {
	b.mixer.Trigger(inst, at)
}

// Close stops the stream
func (b *SynthBank) Close() error {
	if err := b.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
