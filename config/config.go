package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"gridbeat/sequencer"
)

// ControllerType identifies the kind of grid controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerLaunchpadPro  ControllerType = "launchpad-pro"
)

// Audio backends
const (
	BackendSynth = "synth"
	BackendMIDI  = "midi"
)

// ControllerConfig is a saved controller
type ControllerConfig struct {
	PortName    string         `yaml:"portName"`
	Type        ControllerType `yaml:"type"`
	AutoConnect bool           `yaml:"autoConnect"`
}

// AudioConfig selects where drum hits go
type AudioConfig struct {
	Backend  string `yaml:"backend"`
	MIDIPort string `yaml:"midiPort,omitempty"`
	Kit      string `yaml:"kit"`
}

// DetectConfig configures the vision endpoint
type DetectConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIVersion string        `yaml:"apiVersion"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"apiKeyEnv"`
	Timeout    time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the configured environment variable
func (d DetectConfig) APIKey() string {
	if d.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(d.APIKeyEnv)
}

// CameraConfig picks the capture source. File wins over Command.
type CameraConfig struct {
	File    string `yaml:"file,omitempty"`
	Command string `yaml:"command,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Tempo       int                `yaml:"tempo"`
	Audio       AudioConfig        `yaml:"audio"`
	Detect      DetectConfig       `yaml:"detect"`
	Camera      CameraConfig       `yaml:"camera"`
	Controllers []ControllerConfig `yaml:"controllers,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Tempo: 120,
		Audio: AudioConfig{
			Backend: BackendSynth,
			Kit:     "gm",
		},
		Detect: DetectConfig{
			Endpoint:   "https://generativelanguage.googleapis.com/",
			APIVersion: "v1beta",
			Model:      "gemini-2.5-flash",
			APIKeyEnv:  "GEMINI_API_KEY",
			Timeout:    30 * time.Second,
		},
		Camera: CameraConfig{
			Command: "fswebcam -q --no-banner -",
		},
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gridbeat"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the default config file, or returns defaults if there is none
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file. Fields missing from the file keep their
// defaults; a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the app cannot run with
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendSynth, BackendMIDI:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	if c.Tempo < sequencer.MinBPM || c.Tempo > sequencer.MaxBPM {
		return fmt.Errorf("tempo must be %d..%d bpm, got %d", sequencer.MinBPM, sequencer.MaxBPM, c.Tempo)
	}
	if c.Detect.Timeout < 0 {
		return fmt.Errorf("detect timeout must be positive, got %s", c.Detect.Timeout)
	}
	return nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectPorts returns the port names of controllers with autoConnect enabled
func (c *Config) AutoConnectPorts() []string {
	var result []string
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl.PortName)
		}
	}
	return result
}
