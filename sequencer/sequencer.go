package sequencer

import (
	"fmt"
	"sync"
	"time"

	"gridbeat/debug"
	"gridbeat/grid"
)

const (
	NumSteps   = grid.Cols
	DefaultBPM = 120
	MinBPM     = 20
	MaxBPM     = 300
)

// SoundBank produces one onset per Trigger at the given clock time.
// Calls are fire-and-forget and may overlap earlier onsets.
type SoundBank interface {
	Trigger(inst grid.Instrument, at time.Duration)
}

// GridSource hands out immutable grid snapshots
type GridSource interface {
	Snapshot() grid.Grid
}

// State of the transport
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// InvalidTransitionError is returned by Start while playing and by Stop
// while stopped. The sequencer is left exactly as it was.
type InvalidTransitionError struct {
	Op    string
	State State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("sequencer: cannot %s while %s", e.Op, e.State)
}

// Options configure a Sequencer
type Options struct {
	BPM   int   // defaults to DefaultBPM, clamped to MinBPM..MaxBPM
	Clock Clock // defaults to a MonotonicClock

	// OnStep is called after the triggers of each tick, with the step that
	// was just played. It runs on the sequencer goroutine and must not call
	// Start or Stop.
	OnStep func(step int, at time.Duration)
}

// Sequencer plays the grid as a repeating 8-step measure of eighth notes
type Sequencer struct {
	grid   GridSource
	bank   SoundBank
	clock  Clock
	bpm    int
	onStep func(step int, at time.Duration)

	mu       sync.Mutex
	playing  bool
	step     int // next step to play
	playhead int // last step played, -1 before the first tick
	stopChan chan struct{}
	done     chan struct{}

	updateChan chan struct{}
}

// New creates a stopped sequencer reading from src and triggering bank
func New(src GridSource, bank SoundBank, opts Options) *Sequencer {
	if opts.BPM == 0 {
		opts.BPM = DefaultBPM
	}
	if opts.Clock == nil {
		opts.Clock = NewMonotonicClock()
	}
	return &Sequencer{
		grid:       src,
		bank:       bank,
		clock:      opts.Clock,
		bpm:        clampBPM(opts.BPM),
		onStep:     opts.OnStep,
		playhead:   -1,
		updateChan: make(chan struct{}, 1),
	}
}

func clampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// StepInterval is the length of one eighth-note step at bpm
func StepInterval(bpm int) time.Duration {
	return time.Duration(float64(time.Minute) / float64(bpm) / 2)
}

// Interval returns the step length at the sequencer's tempo
func (s *Sequencer) Interval() time.Duration {
	return StepInterval(s.bpm)
}

// BPM returns the tempo
func (s *Sequencer) BPM() int {
	return s.bpm
}

// Start begins playback from step 0
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return &InvalidTransitionError{Op: "start", State: Playing}
	}
	s.startLocked()
	return nil
}

// Stop halts playback. Once it returns no further tick will fire.
// The step position is kept.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return &InvalidTransitionError{Op: "stop", State: Stopped}
	}
	done := s.stopLocked()
	s.mu.Unlock()

	s.awaitStop(done)
	return nil
}

// Toggle starts a stopped sequencer or stops a playing one and returns the
// new state. The check and the transition happen under one lock.
func (s *Sequencer) Toggle() State {
	s.mu.Lock()
	if !s.playing {
		s.startLocked()
		s.mu.Unlock()
		return Playing
	}
	done := s.stopLocked()
	s.mu.Unlock()

	s.awaitStop(done)
	return Stopped
}

// startLocked must be called with mu held while stopped
func (s *Sequencer) startLocked() {
	s.playing = true
	s.step = 0
	s.playhead = -1
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	t0 := s.clock.Now()
	go s.playLoop(t0, s.stopChan, s.done)

	debug.Log("seq", "start", "bpm", s.bpm, "interval", s.Interval())
	s.notify()
}

// stopLocked must be called with mu held while playing. The caller waits on
// the returned channel after releasing mu.
func (s *Sequencer) stopLocked() <-chan struct{} {
	s.playing = false
	close(s.stopChan)
	return s.done
}

func (s *Sequencer) awaitStop(done <-chan struct{}) {
	<-done
	debug.Log("seq", "stop", "step", s.Step())
	s.notify()
}

// Playing reports whether the transport is running
func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Step returns the next step to be played
func (s *Sequencer) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// GetState returns what the UI needs for highlighting
func (s *Sequencer) GetState() (playhead int, playing bool, bpm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playhead, s.playing, s.bpm
}

// Updates delivers a coalesced signal after every tick and state change
func (s *Sequencer) Updates() <-chan struct{} {
	return s.updateChan
}

func (s *Sequencer) notify() {
	select {
	case s.updateChan <- struct{}{}:
	default:
	}
}

// playLoop waits for each absolute deadline t0 + n*interval and ticks
func (s *Sequencer) playLoop(t0 time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := s.Interval()

	for n := int64(0); ; n++ {
		at := t0 + time.Duration(n)*interval
		fire, cancel := s.clock.At(at)
		select {
		case <-stop:
			cancel()
			return
		case <-fire:
		}

		if !s.tick(at, stop) {
			return
		}
	}
}

// tick plays the current column from a single grid snapshot, then advances
func (s *Sequencer) tick(at time.Duration, stop <-chan struct{}) bool {
	s.mu.Lock()
	select {
	case <-stop:
		// Stop won the race against this deadline
		s.mu.Unlock()
		return false
	default:
	}

	snap := s.grid.Snapshot()
	step := s.step
	for row := 0; row < grid.Rows; row++ {
		if snap[row][step] {
			s.bank.Trigger(grid.InstrumentForRow(row), at)
		}
	}
	s.playhead = step
	s.step = (step + 1) % NumSteps
	s.mu.Unlock()

	debug.LogEvery(32, "seq", "tick", "step", step, "at", at)
	if s.onStep != nil {
		s.onStep(step, at)
	}
	s.notify()
	return true
}
