package main

import (
	"testing"
	"time"

	"gridbeat/grid"
	"gridbeat/sequencer"
)

// lateBank records trigger times against the clock it was opened with
type lateBank struct {
	clock sequencer.Clock
	hits  chan time.Duration // bank Now() minus the scheduled time
}

func (b *lateBank) Trigger(inst grid.Instrument, at time.Duration) {
	select {
	case b.hits <- b.clock.Now() - at:
	default:
	}
}

func (b *lateBank) Close() error { return nil }

func TestEngineSharesClockWithBank(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the real clock")
	}
	const openDelay = 200 * time.Millisecond

	var bank *lateBank
	eng, err := newEngine(120, sequencer.NewMonotonicClock(), func(clock sequencer.Clock) (soundBank, error) {
		// opening an audio device takes a while
		time.Sleep(openDelay)
		bank = &lateBank{clock: clock, hits: make(chan time.Duration, 1)}
		return bank, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	eng.store.Toggle(grid.Kick.Row(), 0)

	if err := eng.seq.Start(); err != nil {
		t.Fatal(err)
	}
	defer eng.seq.Stop()

	select {
	case lag := <-bank.hits:
		if lag < 0 || lag > openDelay/2 {
			t.Fatalf("trigger scheduled %v away from the bank clock", -lag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger")
	}
}
