// Package obslog builds the process-wide zap logger, following
// sakateka-yanet2's coordinator command: a development config with level
// and format tuned explicitly rather than zap's raw defaults.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. debug selects zap's development encoder
// (human-readable); otherwise a production JSON encoder is used, matching
// the level the caller passes through level. Both modes build with
// Development off, so stack traces are attached at Error and above.
func New(debug bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Development = false

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("obslog: parse level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("obslog: build logger: %w", err)
	}
	return logger, nil
}

// Noop returns a logger that discards everything, for tests that need a
// *zap.Logger but don't care about its output.
func Noop() *zap.Logger {
	return zap.NewNop()
}
