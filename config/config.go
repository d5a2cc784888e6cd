// Package config loads CLI flags, environment variables, and an optional
// YAML file into a typed Config using koanf/v2, mirroring
// dantte-lp-gobfd's internal/config loader. Config never drives transport
// or driver logic directly: cmd/rusty-comms materializes it into
// driver.Config and api.TransportConfig values, keeping the core
// subsystems free of a config-library dependency.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the environment variable prefix for rusty-comms
// configuration. Variables are named RUSTY_COMMS_<section>_<key>, e.g.
// RUSTY_COMMS_RUN_MESSAGE_SIZE.
const envPrefix = "RUSTY_COMMS_"

// Config is the typed destination of the flag > env > file > defaults
// overlay, matching spec.md §6's CLI surface.
type Config struct {
	Run    RunConfig    `koanf:"run"`
	Log    LogConfig    `koanf:"log"`
	Output OutputConfig `koanf:"output"`
}

// RunConfig holds the benchmark parameters spec.md §6 names.
type RunConfig struct {
	Mechanisms       []string  `koanf:"mechanisms"`
	MessageSize      int       `koanf:"message_size"`
	Iterations       int       `koanf:"iterations"`
	DurationSeconds  float64   `koanf:"duration_seconds"`
	Concurrency      int       `koanf:"concurrency"`
	WarmupIterations int       `koanf:"warmup_iterations"`
	Percentiles      []float64 `koanf:"percentiles"`
	BufferSize       int       `koanf:"buffer_size"`
	Host             string    `koanf:"host"`
	Port             int       `koanf:"port"`
	RoundTrip        bool      `koanf:"round_trip"`
	ContinueOnError  bool      `koanf:"continue_on_error"`
}

// LogConfig mirrors dantte-lp-gobfd's LogConfig shape.
type LogConfig struct {
	Level string `koanf:"level"`
}

// OutputConfig holds the results-file destinations.
type OutputConfig struct {
	File      string `koanf:"file"`
	Streaming string `koanf:"streaming"`
}

// DefaultConfig returns a Config populated with the defaults spec.md §6
// implies: modest iteration count, standard percentile set, 1 KiB
// messages, and loopback TCP on the conventional ephemeral-adjacent base
// port.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Mechanisms:       []string{"uds", "tcp", "pmq", "shm"},
			MessageSize:      1024,
			Iterations:       1000,
			WarmupIterations: 100,
			Concurrency:      1,
			Percentiles:      []float64{50, 90, 95, 99, 99.9},
			BufferSize:       64 * 1024,
			Host:             "127.0.0.1",
			Port:             20000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config by overlaying, from lowest to highest precedence:
// DefaultConfig(), an optional YAML file at path (skipped silently if path
// is empty), RUSTY_COMMS_* environment variables, then flagOverrides (the
// values cobra parsed from the command line, already as a map so the CLI
// layer decides which flags were explicitly set).
func Load(path string, flagOverrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	for key, val := range flagOverrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("config: apply flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

func loadDefaults(k *koanf.Koanf, d *Config) error {
	defaultMap := map[string]any{
		"run.mechanisms":        d.Run.Mechanisms,
		"run.message_size":      d.Run.MessageSize,
		"run.iterations":        d.Run.Iterations,
		"run.duration_seconds":  d.Run.DurationSeconds,
		"run.concurrency":       d.Run.Concurrency,
		"run.warmup_iterations": d.Run.WarmupIterations,
		"run.percentiles":       d.Run.Percentiles,
		"run.buffer_size":       d.Run.BufferSize,
		"run.host":              d.Run.Host,
		"run.port":              d.Run.Port,
		"run.round_trip":        d.Run.RoundTrip,
		"run.continue_on_error": d.Run.ContinueOnError,
		"log.level":             d.Log.Level,
		"output.file":           d.Output.File,
		"output.streaming":      d.Output.Streaming,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// Validation errors, per spec.md §4.9's input validation rules.
var (
	ErrNoMechanisms        = errors.New("at least one mechanism must be requested")
	ErrUnknownMechanism    = errors.New("unrecognized mechanism")
	ErrInvalidMessageSize  = errors.New("message_size must be > 0 and <= 16MiB")
	ErrInvalidBufferSize   = errors.New("buffer_size must be >= 1KiB and <= 1GiB")
	ErrInvalidConcurrency  = errors.New("concurrency must be in [1, 1024]")
	ErrInvalidPort         = errors.New("port must be in [1024, 65535]")
	ErrNoTerminationTarget = errors.New("either iterations or duration_seconds must be set")
)

const (
	maxMessageSize = 16 * 1024 * 1024
	minBufferSize  = 1024
	maxBufferSize  = 1 * 1024 * 1024 * 1024
)

// Validate applies spec.md §4.9's input validation before any transport is
// touched, so invalid configuration is a ConfigError reported before I/O
// begins.
func Validate(cfg *Config) error {
	if len(cfg.Run.Mechanisms) == 0 {
		return ErrNoMechanisms
	}
	for _, m := range cfg.Run.Mechanisms {
		if _, ok := mechanismTokens[m]; !ok {
			return fmt.Errorf("%q: %w", m, ErrUnknownMechanism)
		}
	}
	if cfg.Run.MessageSize <= 0 || cfg.Run.MessageSize > maxMessageSize {
		return ErrInvalidMessageSize
	}
	if cfg.Run.BufferSize < minBufferSize || cfg.Run.BufferSize > maxBufferSize {
		return ErrInvalidBufferSize
	}
	if cfg.Run.Concurrency < 1 || cfg.Run.Concurrency > 1024 {
		return ErrInvalidConcurrency
	}
	if cfg.Run.Port != 0 && (cfg.Run.Port < 1024 || cfg.Run.Port > 65535) {
		return ErrInvalidPort
	}
	if cfg.Run.Iterations <= 0 && cfg.Run.DurationSeconds <= 0 {
		return ErrNoTerminationTarget
	}
	return nil
}

var mechanismTokens = map[string]struct{}{
	"uds": {}, "unix": {}, "unix_domain_socket": {},
	"tcp": {},
	"pmq": {}, "posix_message_queue": {},
	"shm": {}, "shared_memory": {},
}
