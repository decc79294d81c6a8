// Package logging initializes the structured logger used by shmqctl.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	Level zapcore.Level `yaml:"level"`
	// Development puts zap in development mode: stack traces are captured
	// from Warn level up and DPanic logs panic. It does not affect the
	// encoder; sampling is off in either mode.
	Development bool `yaml:"development"`
}

// DefaultConfig returns a Config suitable for interactive use.
func DefaultConfig() Config {
	return Config{Level: zapcore.InfoLevel}
}

// Init initializes the logging subsystem, returning a sugared logger and the
// atomic level handle so callers (e.g. a SIGHUP handler) can change verbosity
// at runtime.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      cfg.Development,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), config.Level, nil
}
