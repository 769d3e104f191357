// Package logger builds the logr.Logger used across the debugger client.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	// LevelDebug also enables protocol traffic (logr verbosity 1).
	LevelDebug Level = iota
	// LevelInfo is the default.
	LevelInfo
	// LevelWarn only emits warnings and errors.
	LevelWarn
	// LevelError only emits errors.
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name. Unknown names are an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		// logr V(1) maps to zap level -1.
		return zapcore.Level(-1)
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps a logr.Logger backed by zap.
type Logger struct {
	logr.Logger
	atomicLevel zap.AtomicLevel
	flush       func()
}

// Config configures New.
type Config struct {
	Name   string
	Level  Level
	Output io.Writer // defaults to os.Stderr
}

// New creates a console logger with ISO8601 timestamps.
func New(cfg Config) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	atomicLevel := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), atomicLevel)
	zapLogger := zap.New(core)

	log := zapr.NewLogger(zapLogger)
	if cfg.Name != "" {
		log = log.WithName(cfg.Name)
	}

	return &Logger{
		Logger:      log,
		atomicLevel: atomicLevel,
		flush: func() {
			_ = zapLogger.Sync()
		},
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.atomicLevel.SetLevel(level.zapLevel())
}

// Flush flushes buffered log entries.
func (l *Logger) Flush() {
	if l.flush != nil {
		l.flush()
	}
}

// OrDiscard returns log, or a discarding logger when log has no sink.
func OrDiscard(log logr.Logger) logr.Logger {
	if log.GetSink() == nil {
		return logr.Discard()
	}
	return log
}
