// Package logger builds the zap.Logger every other package in this
// module logs through. It exists only to centralize the encoder/level
// wiring config.Config drives; callers reach for *zap.Logger directly
// rather than a hand-rolled logging interface.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger New builds. It mirrors the subset of
// config.LoggingConfig the encoder actually needs, so this package
// never imports config (config already depends on zap to expose
// Config.CreateLogger, and a logger->config->logger cycle would
// follow if this package imported config back).
type Options struct {
	Level       string
	Format      string
	Development bool
	OutputPaths []string
	ErrorPaths  []string
	Sampling    bool
}

// New builds a zap.Logger from opts. Development builds start from
// zap's console-encoded development config, everything else from its
// JSON-encoded production config; a non-empty opts.Format overrides
// the encoding in either case.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
	}
	cfg.Level = parsed

	if opts.Format == "console" {
		cfg.Encoding = "console"
	} else if opts.Format != "" {
		cfg.Encoding = opts.Format
	}

	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	if len(opts.ErrorPaths) > 0 {
		cfg.ErrorOutputPaths = opts.ErrorPaths
	}
	if !opts.Sampling {
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests and for
// callers that construct engine components without a bootstrap step.
func Nop() *zap.Logger { return zap.NewNop() }

// Field re-exports zap.Field's constructors under this package so
// call sites that only need a couple of fields don't need a second
// zap import alongside this one.
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Uint32   = zap.Uint32
	Float64  = zap.Float64
	Bool     = zap.Bool
	Err      = zap.Error
	Duration = zap.Duration
	Any      = zap.Any
)
