package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"gridbeat/grid"
)

type fixedClock time.Duration

func (c fixedClock) Now() time.Duration { return time.Duration(c) }

// readFrames pulls n stereo frames and returns the left channel
func readFrames(t *testing.T, m *Mixer, n int) []float32 {
	t.Helper()
	buf := make([]byte, n*ChannelCount*bytesPerSamp)
	got, err := m.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != len(buf) {
		t.Fatalf("Read returned %d bytes, want %d", got, len(buf))
	}
	left := make([]float32, n)
	for i := range left {
		off := i * ChannelCount * bytesPerSamp
		l := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		r := math.Float32frombits(binary.LittleEndian.Uint32(buf[off+bytesPerSamp:]))
		if l != r {
			t.Fatalf("frame %d: left %v != right %v", i, l, r)
		}
		left[i] = l
	}
	return left
}

func peak(s []float32) float32 {
	var p float32
	for _, v := range s {
		if a := float32(math.Abs(float64(v))); a > p {
			p = a
		}
	}
	return p
}

func TestSilenceWithoutTriggers(t *testing.T) {
	m := NewMixer(fixedClock(0), SampleRate)
	if p := peak(readFrames(t, m, 512)); p != 0 {
		t.Fatalf("peak = %v, want silence", p)
	}
}

func TestEveryInstrumentSounds(t *testing.T) {
	for _, inst := range grid.Instruments {
		t.Run(inst.String(), func(t *testing.T) {
			m := NewMixer(fixedClock(0), SampleRate)
			m.Trigger(inst, 0)
			out := readFrames(t, m, 2048)
			if p := peak(out); p == 0 || p > 1 {
				t.Fatalf("peak = %v, want audible and within [-1,1]", p)
			}
		})
	}
}

func TestScheduledOnset(t *testing.T) {
	m := NewMixer(fixedClock(time.Second), SampleRate)
	// 10ms in the future = 441 frames
	m.Trigger(grid.Kick, time.Second+10*time.Millisecond)

	out := readFrames(t, m, 1024)
	if p := peak(out[:441]); p != 0 {
		t.Fatalf("sound before onset, peak %v", p)
	}
	if p := peak(out[441:]); p == 0 {
		t.Fatal("no sound after onset")
	}
}

func TestPastTriggerStartsImmediately(t *testing.T) {
	m := NewMixer(fixedClock(time.Second), SampleRate)
	m.Trigger(grid.Snare, 0)
	if p := peak(readFrames(t, m, 64)); p == 0 {
		t.Fatal("late trigger was dropped")
	}
}

func TestVoicesExpire(t *testing.T) {
	m := NewMixer(fixedClock(0), SampleRate)
	m.Trigger(grid.ClosedHiHat, 0)
	m.Trigger(grid.ClosedHiHat, 0) // overlapping hits are fine
	if m.Active() != 2 {
		t.Fatalf("Active() = %d, want 2", m.Active())
	}
	readFrames(t, m, SampleRate/4)
	if m.Active() != 0 {
		t.Fatalf("Active() = %d after hats decayed, want 0", m.Active())
	}
	if p := peak(readFrames(t, m, 256)); p != 0 {
		t.Fatalf("peak = %v after decay, want silence", p)
	}
}

func TestVoiceCap(t *testing.T) {
	m := NewMixer(fixedClock(0), SampleRate)
	for i := 0; i < maxVoices+5; i++ {
		m.Trigger(grid.OpenHiHat, 0)
	}
	if m.Active() != maxVoices {
		t.Fatalf("Active() = %d, want cap %d", m.Active(), maxVoices)
	}
}
