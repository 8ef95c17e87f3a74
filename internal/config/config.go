// Package config holds the host simulator's configuration. On hardware
// these values are build-time constants; the simulator reads them from an
// optional YAML file so test rigs can resize queues and windows without
// recompiling.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Encoder names the pins of one quadrature encoder.
type Encoder struct {
	Source uint8 `yaml:"source"`
	PinA   uint8 `yaml:"pin_a"`
	PinB   uint8 `yaml:"pin_b"`
}

// Switches names the pins of the panel buttons on one source.
type Switches struct {
	Source uint8   `yaml:"source"`
	Pins   []uint8 `yaml:"pins"`
}

// Config is the simulator configuration.
type Config struct {
	// TickHz is the simulated tick rate in Hz (ticks are microseconds on
	// hardware, so 1_000_000 is real time).
	TickHz int `yaml:"tick_hz"`
	// QuiescenceUs is the debounce window in ticks.
	QuiescenceUs uint64 `yaml:"quiescence_us"`

	// Queue capacities.
	DebounceQueue int `yaml:"debounce_queue"`
	EventQueue    int `yaml:"event_queue"`
	MIDIQueue     int `yaml:"midi_queue"`
	WorkerQueue   int `yaml:"worker_queue"`

	Encoders []Encoder `yaml:"encoders"`
	Switches Switches  `yaml:"switches"`

	Debug bool `yaml:"debug"`
}

// Default returns the configuration matching the hardware constants.
func Default() Config {
	return Config{
		TickHz:        1_000_000,
		QuiescenceUs:  10_000,
		DebounceQueue: 8,
		EventQueue:    16,
		MIDIQueue:     64,
		WorkerQueue:   4,
		Encoders: []Encoder{
			{Source: 0, PinA: 2, PinB: 3},
		},
		Switches: Switches{Source: 0, Pins: []uint8{4, 5, 6, 7}},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.TickHz <= 0 {
		return fmt.Errorf("config: tick_hz must be positive, got %d", c.TickHz)
	}
	if c.QuiescenceUs == 0 {
		return fmt.Errorf("config: quiescence_us must be positive")
	}
	for _, q := range []struct {
		name string
		v    int
	}{
		{"debounce_queue", c.DebounceQueue},
		{"event_queue", c.EventQueue},
		{"midi_queue", c.MIDIQueue},
		{"worker_queue", c.WorkerQueue},
	} {
		if q.v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", q.name, q.v)
		}
	}
	return nil
}
