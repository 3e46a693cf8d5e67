// Package config loads run configurations for the SLX interpreter.
//
// A configuration file is YAML (.yaml, .yml) or TOML (.toml):
//
//	machine:
//	  mem_size: 5000
//	  max_steps: 1000000
//	log:
//	  level: warning
//	  format: text
//	clock:
//	  enabled: true
//	  freq_mhz: 1000
//	input: [1, 2, 3]
//	dump: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sarchlab/akita/v4/sim"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/slx/core"
	"github.com/sarchlab/slx/logger"
)

// Config is a complete run configuration.
type Config struct {
	Machine MachineConfig `yaml:"machine" toml:"machine"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	Clock   ClockConfig   `yaml:"clock" toml:"clock"`

	// Input, if set, is the finite input sequence for REA.
	Input []int32 `yaml:"input" toml:"input"`

	// Dump writes a state dump when a run faults.
	Dump bool `yaml:"dump" toml:"dump"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `yaml:"-" toml:"-"`
}

// MachineConfig sizes the machine.
type MachineConfig struct {
	MemSize  int `yaml:"mem_size" toml:"mem_size"`
	MaxSteps int `yaml:"max_steps" toml:"max_steps"`
}

// LogConfig selects log verbosity and format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ClockConfig controls timed execution on the simulation engine.
type ClockConfig struct {
	Enabled bool    `yaml:"enabled" toml:"enabled"`
	FreqMHz float64 `yaml:"freq_mhz" toml:"freq_mhz"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Machine: MachineConfig{
			MemSize:  core.DefaultMemSize,
			MaxSteps: core.DefaultMaxSteps,
		},
		Log: LogConfig{
			Level:  "warning",
			Format: "text",
		},
		Clock: ClockConfig{
			FreqMHz: 1000,
		},
	}
}

// Load reads a configuration file. Fields missing from the file keep their
// defaults; unknown fields are errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &c)
	case ".toml":
		err = decodeTOML(data, &c)
	default:
		return Config{}, fmt.Errorf("%s: unsupported config format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Path = path

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

func decodeYAML(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decodeTOML(data []byte, c *Config) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown field %q", undecoded[0].String())
	}

	return nil
}

// Validate checks that all fields hold usable values.
func (c Config) Validate() error {
	if c.Machine.MemSize < core.MinMemSize {
		return fmt.Errorf("machine.mem_size must be at least %d, got %d",
			core.MinMemSize, c.Machine.MemSize)
	}
	if c.Machine.MaxSteps <= 0 {
		return fmt.Errorf("machine.max_steps must be positive, got %d", c.Machine.MaxSteps)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: invalid log format: %s", c.Log.Format)
	}
	if c.Clock.FreqMHz <= 0 {
		return fmt.Errorf("clock.freq_mhz must be positive, got %v", c.Clock.FreqMHz)
	}

	return nil
}

// Freq returns the clock frequency for the simulation engine.
func (c Config) Freq() sim.Freq {
	return sim.Freq(c.Clock.FreqMHz) * sim.MHz
}

// MachineBuilder returns a builder carrying the machine settings and input.
func (c Config) MachineBuilder(l *slog.Logger) core.Builder {
	b := core.NewBuilder().
		WithMemSize(c.Machine.MemSize).
		WithMaxSteps(c.Machine.MaxSteps)

	if l != nil {
		b = b.WithLogger(l)
	}
	if c.Input != nil {
		b = b.WithInput(core.NewSliceInput(c.Input...))
	}

	return b
}
