package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"gridbeat/camera"
	"gridbeat/config"
	"gridbeat/debug"
	"gridbeat/detect"
	"gridbeat/grid"
	"gridbeat/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "detect":
		err = detectCmd(os.Args[2:])
	case "export":
		err = exportCmd(os.Args[2:])
	case "ports":
		err = portsCmd()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("gridscan - headless grid detection")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  detect -image f.jpg              - print the detected grid")
	fmt.Println("  export -image f.jpg -o beat.mid  - write the detected grid as MIDI")
	fmt.Println("  ports                            - list MIDI output ports")
}

type scanFlags struct {
	config  *string
	image   *string
	verbose *bool
	strict  *bool
}

func addScanFlags(fs *flag.FlagSet) scanFlags {
	return scanFlags{
		config:  fs.String("config", "", "config file"),
		image:   fs.String("image", "", "image file (default: configured camera)"),
		verbose: fs.Bool("v", false, "log to stderr"),
		strict:  fs.Bool("strict", false, "fail on detection errors instead of printing an empty grid"),
	}
}

func (f scanFlags) scan() (grid.Grid, *config.Config, error) {
	if *f.verbose {
		debug.EnableWriter(os.Stderr)
	}

	cfg, err := loadConfig(*f.config)
	if err != nil {
		return grid.Empty(), nil, err
	}

	var cam camera.Controller = camera.ParseCommand(cfg.Camera.Command)
	switch {
	case *f.image != "":
		cam = &camera.FileCamera{Path: *f.image}
	case cfg.Camera.File != "":
		cam = &camera.FileCamera{Path: cfg.Camera.File}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload, err := camera.Snapshot(ctx, cam)
	if err != nil {
		return grid.Empty(), nil, err
	}

	client := &detect.Client{
		Endpoint:   cfg.Detect.Endpoint,
		APIVersion: cfg.Detect.APIVersion,
		Model:      cfg.Detect.Model,
		APIKey:     cfg.Detect.APIKey(),
		Timeout:    cfg.Detect.Timeout,
	}
	if *f.strict {
		g, err := client.Fetch(ctx, payload)
		return g, cfg, err
	}
	return client.Detect(ctx, payload), cfg, nil
}

// loadConfig reads path, or the default config file when path is empty.
// A missing default file yields defaults; a broken one is an error.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func detectCmd(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	sf := addScanFlags(fs)
	fs.Parse(args)

	g, _, err := sf.scan()
	if err != nil {
		return err
	}
	fmt.Print(g.String())
	return nil
}

func exportCmd(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addScanFlags(fs)
	out := fs.String("o", "beat.mid", "output .mid file")
	bars := fs.Int("bars", 1, "measures to repeat the pattern for")
	bpm := fs.Int("bpm", 0, "tempo (default from config)")
	kit := fs.String("kit", "", "drum kit note map (default from config)")
	fs.Parse(args)

	g, cfg, err := sf.scan()
	if err != nil {
		return err
	}
	if *bpm > 0 {
		cfg.Tempo = *bpm
	}
	if *kit != "" {
		cfg.Audio.Kit = *kit
	}

	err = midi.ExportFile(*out, g, midi.ExportOptions{
		BPM:  cfg.Tempo,
		Kit:  midi.GetKit(cfg.Audio.Kit),
		Bars: *bars,
	})
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d hits, %d bpm)\n", *out, g.Count()*(*bars), cfg.Tempo)
	return nil
}

func portsCmd() error {
	done := make(chan []string, 1)
	go func() {
		done <- midi.OutPortNames()
	}()

	select {
	case names := <-done:
		fmt.Println("=== MIDI Output Ports ===")
		for i, name := range names {
			fmt.Printf("  %d: %s\n", i, name)
		}
		fmt.Println("\n=== MIDI Input Ports ===")
		for i, p := range gomidi.GetInPorts() {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\nKits:", midi.KitNames())
		return nil
	case <-time.After(3 * time.Second):
		return fmt.Errorf("timed out listing MIDI ports")
	}
}
