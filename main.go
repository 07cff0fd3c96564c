package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gridbeat/audio"
	"gridbeat/camera"
	"gridbeat/config"
	"gridbeat/debug"
	"gridbeat/detect"
	"gridbeat/grid"
	"gridbeat/midi"
	"gridbeat/sequencer"
	"gridbeat/theme"
	"gridbeat/tui"
)

type soundBank interface {
	sequencer.SoundBank
	Close() error
}

func main() {
	configFile := flag.String("config", "", "config file (default ~/.config/gridbeat/config.yaml)")
	debugLog := flag.Bool("debug", false, "write a debug log to ~/.config/gridbeat/debug.log")
	image := flag.String("image", "", "use an image file as the camera")
	bpm := flag.Int("bpm", 0, "tempo in BPM (overrides config)")
	backend := flag.String("audio", "", "audio backend: synth or midi (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *bpm > 0 {
		cfg.Tempo = *bpm
	}
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if *image != "" {
		cfg.Camera.File = *image
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *debugLog {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: debug log disabled: %v\n", err)
		}
		defer debug.Disable()
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func bankOpener(cfg *config.Config, kit midi.DrumKit) func(sequencer.Clock) (soundBank, error) {
	return func(clock sequencer.Clock) (soundBank, error) {
		if cfg.Audio.Backend == config.BackendMIDI {
			return midi.OpenBank(cfg.Audio.MIDIPort, clock, kit)
		}
		return audio.NewSynthBank(clock)
	}
}

// engine is the playback side: the sequencer and the bank it triggers run
// on one clock, so trigger times mean the same thing to both
type engine struct {
	store *grid.Store
	bank  soundBank
	seq   *sequencer.Sequencer
}

func newEngine(bpm int, clock sequencer.Clock, open func(sequencer.Clock) (soundBank, error)) (*engine, error) {
	bank, err := open(clock)
	if err != nil {
		return nil, err
	}
	store := grid.NewStore()
	return &engine{
		store: store,
		bank:  bank,
		seq:   sequencer.New(store, bank, sequencer.Options{BPM: bpm, Clock: clock}),
	}, nil
}

// cameraFor picks the capture source from config
func cameraFor(cfg *config.Config) camera.Controller {
	if cfg.Camera.File != "" {
		return &camera.FileCamera{Path: cfg.Camera.File}
	}
	return camera.ParseCommand(cfg.Camera.Command)
}

func run(cfg *config.Config) error {
	kit := midi.GetKit(cfg.Audio.Kit)

	eng, err := newEngine(cfg.Tempo, sequencer.NewMonotonicClock(), bankOpener(cfg, kit))
	if err != nil {
		return err
	}
	defer eng.bank.Close()
	store, seq := eng.store, eng.seq

	det := &detect.Client{
		Endpoint:   cfg.Detect.Endpoint,
		APIVersion: cfg.Detect.APIVersion,
		Model:      cfg.Detect.Model,
		APIKey:     cfg.Detect.APIKey(),
		Timeout:    cfg.Detect.Timeout,
	}
	if det.APIKey == "" {
		debug.Warn("main", "no detection API key; scans will return an empty grid", "env", cfg.Detect.APIKeyEnv)
	}

	deviceMgr := midi.NewDeviceManager(cfg.AutoConnectPorts()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)

	exportDir, err := os.Getwd()
	if err != nil {
		exportDir = os.TempDir()
	}

	m := tui.NewModel(tui.Deps{
		Store:     store,
		Sequencer: seq,
		Camera:    cameraFor(cfg),
		Detector:  det,
		DeviceMgr: deviceMgr,
		Theme:     theme.New(theme.DefaultPalette()),
		Kit:       kit,
		ExportDir: exportDir,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	if seq.Playing() {
		seq.Stop()
	}
	return err
}
