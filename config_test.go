package tickbus

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
capacity: 4096
slot_capacity: 8
grow_on_overflow: false
max_capacity: 1048576
tape_path: /tmp/ticks.tape
log_level: debug
`)
	t.Setenv("TICKBUS_CAPACITY", "8192")
	t.Setenv("TICKBUS_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, Config{
		Capacity:       8192,
		SlotCapacity:   8,
		GrowOnOverflow: false,
		MaxCapacity:    1 << 20,
		TapePath:       "/tmp/ticks.tape",
		LogLevel:       "warn",
	}, cfg)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, lvl)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "capacity: [1, 2"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "capacity: 0\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("TICKBUS_SLOT_CAPACITY", "many")
	_, err = LoadConfig("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty level", func(c *Config) { c.LogLevel = "" }, true},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, false},
		{"negative slots", func(c *Config) { c.SlotCapacity = -1 }, false},
		{"max below capacity", func(c *Config) { c.MaxCapacity = c.Capacity - 1 }, false},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
