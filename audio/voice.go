package audio

import (
	"math"

	"gridbeat/grid"
)

// voiceLength is how long each instrument rings, in seconds
var voiceLength = map[grid.Instrument]float64{
	grid.OpenHiHat:   0.45,
	grid.ClosedHiHat: 0.08,
	grid.Snare:       0.25,
	grid.Kick:        0.5,
}

// voice is one sounding drum hit
type voice struct {
	inst   grid.Instrument
	onset  int64 // absolute frame the hit starts on
	frames int   // total length in frames

	pos   int // frames rendered so far
	phase float64
	noise uint32
	hpIn  float32 // high-pass filter state
	hpOut float32
}

func newVoice(inst grid.Instrument, onset int64, sampleRate int, seed uint32) *voice {
	if seed == 0 {
		seed = 0x9E3779B9
	}
	return &voice{
		inst:   inst,
		onset:  onset,
		frames: int(voiceLength[inst] * float64(sampleRate)),
		noise:  seed,
	}
}

func (v *voice) finished() bool {
	return v.pos >= v.frames
}

// render adds this voice into out, whose first frame is at absolute frame start
func (v *voice) render(out []float32, start int64, sampleRate int) {
	offset := int(v.onset - start)
	if offset >= len(out) {
		return
	}
	if offset < 0 {
		offset = 0
	}
	dt := 1 / float64(sampleRate)
	for i := offset; i < len(out) && !v.finished(); i++ {
		t := float64(v.pos) * dt
		out[i] += v.sample(t, dt)
		v.pos++
	}
}

func (v *voice) sample(t, dt float64) float32 {
	switch v.inst {
	case grid.Kick:
		freq := 50 + 110*math.Exp(-t*30)
		v.phase += 2 * math.Pi * freq * dt
		return float32(math.Sin(v.phase) * math.Exp(-t*7))
	case grid.Snare:
		v.phase += 2 * math.Pi * 185 * dt
		tone := 0.4 * math.Sin(v.phase) * math.Exp(-t*22)
		rattle := 0.6 * float64(v.highpass(v.white())) * math.Exp(-t*16)
		return float32(tone + rattle)
	case grid.ClosedHiHat:
		return v.highpass(v.white()) * float32(0.5*math.Exp(-t*55))
	case grid.OpenHiHat:
		return v.highpass(v.white()) * float32(0.4*math.Exp(-t*7))
	}
	return 0
}

// white returns uniform noise in [-1, 1) from a per-voice xorshift32
func (v *voice) white() float32 {
	x := v.noise
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	v.noise = x
	return float32(x)/float32(math.MaxUint32)*2 - 1
}

// highpass is a one-pole filter that thins noise into a hat/snare texture
func (v *voice) highpass(x float32) float32 {
	const a = 0.85
	y := a * (v.hpOut + x - v.hpIn)
	v.hpIn = x
	v.hpOut = y
	return y
}
