// Package logging provides structured logging for the Halyard core.
// It is a thin facade over zap so call sites pass plain context maps and
// the composition root decides encoder and level once.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger behind the facade API.
type Logger struct {
	z *zap.Logger
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Call once at the composition root;
// later calls are no-ops.
func Init(level zapcore.Level) {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		z, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			z = zap.NewNop()
		}
		global = &Logger{z: z}
	})
}

// Get returns the global logger instance, initializing it at info level
// if the composition root has not done so.
func Get() *Logger {
	if global == nil {
		Init(zapcore.InfoLevel)
	}
	return global
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if global != nil {
		_ = global.z.Sync()
	}
}

func fields(err error, context []map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, 4)
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, ctx := range context {
		for k, v := range ctx {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.z.Debug(message, fields(nil, context)...)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.z.Info(message, fields(nil, context)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.z.Warn(message, fields(nil, context)...)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	l.z.Error(message, fields(err, context)...)
}

// Convenience functions using the global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}
