package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/internal/enginelog"
	"github.com/joeycumines/factorial/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadDecodesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	body := `
strategy = "delta"
fixed_timestep_ticks = 4
seed = 99
event_buffer_capacity = 128
log_level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "delta", cfg.StrategyName)
	assert.Equal(t, int64(4), cfg.FixedTimestepTicks)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 128, cfg.EventBufferCapacity)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestStrategyDefaultsToTick(t *testing.T) {
	var cfg Config
	assert.Equal(t, sim.TickStrategy(), cfg.Strategy())

	cfg.StrategyName = "unknown"
	assert.Equal(t, sim.TickStrategy(), cfg.Strategy())
}

func TestStrategyDelta(t *testing.T) {
	cfg := Config{StrategyName: "delta", FixedTimestepTicks: 7}
	assert.Equal(t, sim.DeltaStrategy(fixedpoint.Ticks(7)), cfg.Strategy())
}

func TestLogLevelOrDefault(t *testing.T) {
	cases := map[string]enginelog.Level{
		"":        enginelog.LevelInfo,
		"unknown": enginelog.LevelInfo,
		"disabled": enginelog.LevelDisabled,
		"error":   enginelog.LevelError,
		"warning": enginelog.LevelWarning,
		"debug":   enginelog.LevelDebug,
		"trace":   enginelog.LevelTrace,
	}
	for name, want := range cases {
		cfg := Config{LogLevel: name}
		assert.Equal(t, want, cfg.LogLevelOrDefault(), "log level %q", name)
	}
}

func TestEngineConfigWiresFieldsThrough(t *testing.T) {
	cfg := Config{StrategyName: "tick", Seed: 5, EventBufferCapacity: 32}
	log := enginelog.New(nil, enginelog.LevelDisabled)
	ec := cfg.EngineConfig(log)
	assert.Equal(t, sim.TickStrategy(), ec.Strategy)
	assert.Equal(t, uint64(5), ec.Seed)
	assert.Equal(t, 32, ec.EventBufferCapacity)
	assert.Same(t, log, ec.Log)
}
