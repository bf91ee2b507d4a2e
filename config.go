package tickbus

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCapacity     = 64 << 10
	DefaultSlotCapacity = 64
)

// Config sizes the bus. Values come from DefaultConfig, then an optional
// YAML file, then TICKBUS_* environment variables.
type Config struct {
	// Capacity is the shared buffer size in bytes. It must cover the peak
	// number of bytes produced in one tick.
	Capacity int `yaml:"capacity" env:"TICKBUS_CAPACITY"`

	// SlotCapacity is the number of elements each slot starts with.
	SlotCapacity int `yaml:"slot_capacity" env:"TICKBUS_SLOT_CAPACITY"`

	// GrowOnOverflow grows the shared buffer at the tick boundary after a
	// write phase ran out of room.
	GrowOnOverflow bool `yaml:"grow_on_overflow" env:"TICKBUS_GROW_ON_OVERFLOW"`

	// MaxCapacity bounds growth; zero means unbounded.
	MaxCapacity int `yaml:"max_capacity" env:"TICKBUS_MAX_CAPACITY"`

	// TapePath, when set, is where hosts capture drained ticks.
	TapePath string `yaml:"tape_path" env:"TICKBUS_TAPE_PATH"`

	LogLevel string `yaml:"log_level" env:"TICKBUS_LOG_LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		SlotCapacity:   DefaultSlotCapacity,
		GrowOnOverflow: true,
		LogLevel:       "info",
	}
}

// LoadConfig reads path (if not empty) over the defaults and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.SlotCapacity < 0:
		return fmt.Errorf("%w: slot_capacity must not be negative, got %d", ErrInvalidConfig, c.SlotCapacity)
	case c.MaxCapacity != 0 && c.MaxCapacity < c.Capacity:
		return fmt.Errorf("%w: max_capacity %d below capacity %d", ErrInvalidConfig, c.MaxCapacity, c.Capacity)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel; empty means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return lvl, nil
}
