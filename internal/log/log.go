// Package log holds the process-wide zap logger.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger = zap.NewNop()

func Get() *zap.Logger {
	return defaultLogger
}

// Set replaces the default logger. level is a zap level name ("debug",
// "info", ...); development switches to the console encoder.
func Set(level string, development bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.Config{
			Development:      true,
			Encoding:         "console",
			EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// Use installs logger as the default, mainly for tests.
func Use(logger *zap.Logger) {
	defaultLogger = logger
}

func Flush() {
	_ = defaultLogger.Sync()
}
