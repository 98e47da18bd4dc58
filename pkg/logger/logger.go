// Package logger provides the process-wide structured logger used across the guardian daemon.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init configures the process-wide zap logger. level is one of zap's level names
// (debug, info, warn, error); development enables console encoding and caller info.
func Init(level string, development bool) error {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	log = l
	return nil
}

// Sync flushes any buffered log entries. Call via defer after Init.
func Sync() {
	if log == nil {
		return
	}
	// os.Stdout/os.Stderr frequently return ENOTTY for Sync on a console; ignore.
	_ = log.Sync()
}

func ensure() *zap.Logger {
	if log == nil {
		l, _ := zap.NewDevelopment()
		log = l
	}
	return log
}

func Debug(msg string, fields ...zap.Field) { ensure().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { ensure().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { ensure().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { ensure().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) {
	ensure().Error(msg, fields...)
	os.Exit(1)
}
