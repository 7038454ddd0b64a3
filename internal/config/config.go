// Package config loads riffloop's settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendDynamo = "dynamodb"
)

// Config is the settings file. Durations are written as Go durations
// ("50ms", "3s").
type Config struct {
	StoreDir       string `yaml:"store_dir"`
	StoreBackend   string `yaml:"store_backend"`
	DynamoTable    string `yaml:"dynamo_table"`
	DynamoEndpoint string `yaml:"dynamo_endpoint,omitempty"`
	DynamoRegion   string `yaml:"dynamo_region"`

	LoopInterval  time.Duration `yaml:"loop_interval"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	ScrollQuiet   time.Duration `yaml:"scroll_quiet"`
	AutosaveDelay time.Duration `yaml:"autosave_delay"`

	ClickVolume float64 `yaml:"click_volume"`
	Zoom        float64 `yaml:"zoom"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	// MIDIIn names the foot controller input. "virtual" creates a port
	// instead; empty disables the remote.
	MIDIIn string `yaml:"midi_in,omitempty"`
	// MIDIOut names an output that receives metronome clicks as notes.
	MIDIOut string `yaml:"midi_out,omitempty"`
	// Remote overrides the pedal mapping, trigger to action.
	Remote map[string]string `yaml:"remote,omitempty"`

	Listen string `yaml:"listen"`
}

// Dir returns riffloop's directory under the user config dir.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("find config dir: %w", err)
	}
	return filepath.Join(base, "riffloop"), nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in settings.
func Default() Config {
	storeDir := "sessions"
	if dir, err := Dir(); err == nil {
		storeDir = filepath.Join(dir, "sessions")
	}
	return Config{
		StoreDir:      storeDir,
		StoreBackend:  BackendFile,
		DynamoTable:   "riffloop-sessions",
		DynamoRegion:  "us-east-1",
		LoopInterval:  50 * time.Millisecond,
		FrameInterval: 16 * time.Millisecond,
		ScrollQuiet:   3 * time.Second,
		AutosaveDelay: time.Second,
		ClickVolume:   1,
		Zoom:          0,
		LogLevel:      "info",
		Listen:        ":8080",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile:
		if c.StoreDir == "" {
			return errors.New("store_dir is required for the file backend")
		}
	case BackendDynamo:
		if c.DynamoTable == "" {
			return errors.New("dynamo_table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	for name, d := range map[string]time.Duration{
		"loop_interval":  c.LoopInterval,
		"frame_interval": c.FrameInterval,
		"scroll_quiet":   c.ScrollQuiet,
		"autosave_delay": c.AutosaveDelay,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	return nil
}

// Write saves c to path, creating its directory.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
