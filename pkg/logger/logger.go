// Package logger provides a thin wrapper around zap with a stable field API
// so the rest of the codebase never imports zap directly.
package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

// Config holds the logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", or "error"
	Format string // "json" or "console"
}

// Logger wraps a zap.Logger.
type Logger struct {
	zl *zap.Logger
}

// New creates a new Logger from the given config.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	if cfg.Format == "console" || cfg.Format == "" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{zl: zl}, nil
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

// Named returns a logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zl: l.zl.Named(name)}
}

// With returns a logger with the given fields attached to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zl: l.zl.With(fields...)}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, fields...) }

// Info logs a message at info level.
func (l *Logger) Info(msg string, fields ...Field) { l.zl.Info(msg, fields...) }

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, fields ...Field) { l.zl.Warn(msg, fields...) }

// Error logs a message at error level.
func (l *Logger) Error(msg string, fields ...Field) { l.zl.Error(msg, fields...) }

// Field constructors, re-exported so callers only depend on this package.

func String(key, value string) Field             { return zap.String(key, value) }
func Int(key string, value int) Field            { return zap.Int(key, value) }
func Int64(key string, value int64) Field        { return zap.Int64(key, value) }
func Float64(key string, value float64) Field    { return zap.Float64(key, value) }
func Bool(key string, value bool) Field          { return zap.Bool(key, value) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }
func Time(key string, t time.Time) Field         { return zap.Time(key, t) }
func Any(key string, value any) Field            { return zap.Any(key, value) }
func Error(err error) Field                      { return zap.Error(err) }
