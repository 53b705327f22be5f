// Package config loads optional engine configuration from TOML, the same
// "documented-defaults, nil/zero is valid" convention microbatch.BatcherConfig
// uses for its constructor argument.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/factorial/engine"
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/internal/enginelog"
	"github.com/joeycumines/factorial/sim"
)

// Config models the optional settings a factorialctl scene file may specify
// under a [engine] table. The zero value is valid and matches Engine's own
// documented defaults (Tick strategy, seed 0, 64-entry event buffers).
type Config struct {
	// StrategyName selects Tick or Delta stepping: "tick" or "delta".
	// **Defaults to "tick", if empty.**
	StrategyName string `toml:"strategy"`

	// FixedTimestepTicks is the StrategyDelta fixed step, in raw Ticks
	// units. Ignored for Strategy == "tick".
	FixedTimestepTicks int64 `toml:"fixed_timestep_ticks"`

	// Seed is the root PRNG stream's seed.
	// **Defaults to 0, if unspecified.**
	Seed uint64 `toml:"seed"`

	// EventBufferCapacity is the per-kind ring buffer size.
	// **Defaults to 64 (engine.DefaultEventBufferCapacity), if 0 or negative.**
	EventBufferCapacity int `toml:"event_buffer_capacity"`

	// LogLevel names the enginelog.Level to log at: "disabled", "error",
	// "warning", "info", "debug", or "trace".
	// **Defaults to "info", if empty.**
	LogLevel string `toml:"log_level"`
}

// Load decodes a TOML configuration file at path. A missing file is not an
// error: it returns the zero Config, matching NewBatcher(nil, ...)'s
// "absent config means all defaults" behavior.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Strategy converts the decoded StrategyName/FixedTimestepTicks fields into
// a sim.Strategy, defaulting to sim.TickStrategy() for an empty or unknown
// name.
func (c Config) Strategy() sim.Strategy {
	switch c.StrategyName {
	case "delta":
		return sim.DeltaStrategy(fixedpoint.Ticks(c.FixedTimestepTicks))
	default:
		return sim.TickStrategy()
	}
}

// LogLevelOrDefault parses LogLevel into an enginelog.Level, defaulting to
// enginelog.LevelInfo for an empty or unrecognized name.
func (c Config) LogLevelOrDefault() enginelog.Level {
	switch c.LogLevel {
	case "disabled":
		return enginelog.LevelDisabled
	case "error":
		return enginelog.LevelError
	case "warning":
		return enginelog.LevelWarning
	case "debug":
		return enginelog.LevelDebug
	case "trace":
		return enginelog.LevelTrace
	default:
		return enginelog.LevelInfo
	}
}

// Logger builds an enginelog.Logger writing to w at the decoded LogLevel.
func (c Config) Logger(w io.Writer) *enginelog.Logger {
	return enginelog.New(w, c.LogLevelOrDefault())
}

// EngineConfig builds an engine.Config from the decoded settings, logging to
// log (which may be nil to discard all diagnostics).
func (c Config) EngineConfig(log *enginelog.Logger) engine.Config {
	return engine.Config{
		Strategy:            c.Strategy(),
		Seed:                c.Seed,
		EventBufferCapacity: c.EventBufferCapacity,
		Log:                 log,
	}
}
