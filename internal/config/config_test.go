package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16*time.Millisecond, cfg.Engine.TickRate)
	assert.Equal(t, "config/scenario.yaml", cfg.Engine.Scenario)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, uint64(600), cfg.Telemetry.FlushFrames)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[engine]
tick_rate = "33ms"
scenario = "worlds/europe.yaml"

[threading]
workers = 8
promote_average = "20ms"
max_errors = 3

[logging]
level = "debug"
format = "json"

[telemetry]
enabled = true
dsn = "postgres://u:p@db:5432/simd"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 33*time.Millisecond, cfg.Engine.TickRate)
	assert.Equal(t, "worlds/europe.yaml", cfg.Engine.Scenario)
	assert.Equal(t, 8, cfg.Threading.Workers)
	assert.Equal(t, 20*time.Millisecond, cfg.Threading.PromoteAverage)
	assert.Equal(t, uint64(3), cfg.Threading.MaxErrors)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "postgres://u:p@db:5432/simd", cfg.Telemetry.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestTuningMapping(t *testing.T) {
	tc := ThreadingConfig{
		Workers:        4,
		PromoteAverage: 12 * time.Millisecond,
		MaxErrors:      7,
	}

	tuning := tc.Tuning()
	assert.Equal(t, 4, tuning.Workers)
	assert.Equal(t, 12*time.Millisecond, tuning.PromoteAverage)
	assert.Equal(t, uint64(7), tuning.MaxErrors)
	assert.Zero(t, tuning.DemoteFrames)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)

	_, err = NewLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
