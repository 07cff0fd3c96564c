package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"gridbeat/debug"
	"gridbeat/grid"
)

const (
	SampleRate   = 44100
	ChannelCount = 2
	bytesPerSamp = 4 // float32 LE
	maxVoices    = 16
)

// Clock is the time base triggers are expressed in
type Clock interface {
	Now() time.Duration
}

// Mixer renders triggered drum voices as interleaved float32 LE stereo.
// It is the io.Reader handed to the audio device.
type Mixer struct {
	clock      Clock
	sampleRate int
	gain       float32

	mu     sync.Mutex
	frame  int64 // frames rendered so far
	voices []*voice
	seed   uint32

	mono []float32
	tmp  []float32
}

func NewMixer(clock Clock, sampleRate int) *Mixer {
	return &Mixer{
		clock:      clock,
		sampleRate: sampleRate,
		gain:       0.8,
		seed:       1,
	}
}

// Trigger schedules an onset at clock time at. Times already in the past
// start on the next rendered frame.
func (m *Mixer) Trigger(inst grid.Instrument, at time.Duration) {
	delay := at - m.clock.Now()
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	onset := m.frame + int64(delay.Seconds()*float64(m.sampleRate))
	m.seed = m.seed*1664525 + 1013904223
	if len(m.voices) >= maxVoices {
		// steal the oldest
		m.voices = m.voices[1:]
		debug.LogEvery(16, "audio", "voice stolen", "inst", inst)
	}
	m.voices = append(m.voices, newVoice(inst, onset, m.sampleRate, m.seed))
}

// Active returns how many voices are pending or sounding
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Read fills p with whole stereo frames. It never returns EOF.
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / (ChannelCount * bytesPerSamp)
	if frames == 0 {
		return 0, nil
	}

	m.mu.Lock()
	m.mono = grow(m.mono, frames)
	m.tmp = grow(m.tmp, frames)
	clear(m.mono)

	start := m.frame
	kept := m.voices[:0]
	for _, v := range m.voices {
		clear(m.tmp)
		v.render(m.tmp, start, m.sampleRate)
		vek32.Add_Inplace(m.mono, m.tmp)
		if !v.finished() {
			kept = append(kept, v)
		}
	}
	m.voices = kept
	m.frame += int64(frames)
	vek32.MulNumber_Inplace(m.mono, m.gain)

	for i, s := range m.mono {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		bits := math.Float32bits(s)
		off := i * ChannelCount * bytesPerSamp
		binary.LittleEndian.PutUint32(p[off:], bits)
		binary.LittleEndian.PutUint32(p[off+bytesPerSamp:], bits)
	}
	m.mu.Unlock()

	return frames * ChannelCount * bytesPerSamp, nil
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
