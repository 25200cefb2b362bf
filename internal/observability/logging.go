// Package observability builds the structured loggers the simulation
// binaries hand to each subsystem.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/derelict/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Subsystems holds one named child logger per simulation subsystem.
type Subsystems struct {
	Threat    *zap.Logger
	Encounter *zap.Logger
	Station   *zap.Logger
	Scripting *zap.Logger
	Mission   *zap.Logger
	Storage   *zap.Logger
	Lifecycle *zap.Logger
}

// Split derives the subsystem loggers from root. Each child carries its
// subsystem name so log lines can be filtered per component.
//
// Precondition: root must be non-nil.
func Split(root *zap.Logger) Subsystems {
	return Subsystems{
		Threat:    root.Named("threat"),
		Encounter: root.Named("encounter"),
		Station:   root.Named("station"),
		Scripting: root.Named("scripting"),
		Mission:   root.Named("mission"),
		Storage:   root.Named("storage"),
		Lifecycle: root.Named("lifecycle"),
	}
}
