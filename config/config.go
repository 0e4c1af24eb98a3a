package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// TransportConfig sets tempo and scheduling
type TransportConfig struct {
	BPM          float64       `yaml:"bpm"`
	PPQ          int           `yaml:"ppq"`
	Lookahead    float64       `yaml:"lookahead"` // seconds
	TickInterval time.Duration `yaml:"tickInterval"`
}

// MIDIConfig selects the synth output
type MIDIConfig struct {
	Port    string        `yaml:"port,omitempty"` // substring match, empty for the first port
	Channel int           `yaml:"channel"`
	Timeout time.Duration `yaml:"timeout"`
}

// AudioConfig enables sample playback
type AudioConfig struct {
	Enabled    bool     `yaml:"enabled"`
	SampleRate int      `yaml:"sampleRate"`
	Samples    []string `yaml:"samples,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	FPS     int    `yaml:"fps"`
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file
}

// LogConfig controls the debug logger
type LogConfig struct {
	Level   string `yaml:"level"`
	File    bool   `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Config is the main configuration structure
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	MIDI      MIDIConfig      `yaml:"midi"`
	Audio     AudioConfig     `yaml:"audio"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			BPM:          120,
			PPQ:          192,
			Lookahead:    0.1,
			TickInterval: 30 * time.Millisecond,
		},
		MIDI: MIDIConfig{
			Timeout: 3 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
		},
		UI: UIConfig{
			FPS: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case !(c.Transport.BPM > 0):
		return errors.Errorf("config: bpm must be positive, got %v", c.Transport.BPM)
	case c.Transport.PPQ <= 0:
		return errors.Errorf("config: ppq must be positive, got %d", c.Transport.PPQ)
	case c.Transport.Lookahead < 0:
		return errors.Errorf("config: lookahead must not be negative, got %v", c.Transport.Lookahead)
	case c.Transport.TickInterval <= 0:
		return errors.Errorf("config: tick interval must be positive, got %v", c.Transport.TickInterval)
	case c.MIDI.Channel < 0 || c.MIDI.Channel > 15:
		return errors.Errorf("config: midi channel must be 0-15, got %d", c.MIDI.Channel)
	case c.Audio.Enabled && c.Audio.SampleRate <= 0:
		return errors.Errorf("config: sample rate must be positive, got %d", c.Audio.SampleRate)
	case c.UI.FPS <= 0:
		return errors.Errorf("config: fps must be positive, got %d", c.UI.FPS)
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-transport"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes yaml over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
		return errors.Wrap(err, "create config dir")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, data, 0644)
}
