// Package logger provides the process-wide structured logger used across the
// flight data server. It wraps a zap SugaredLogger so call sites can use either
// printf-style helpers or key/value pairs.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// Initialize configures the global logger. When debug is true the logger runs
// at debug level with a console encoder, otherwise JSON at info level.
func Initialize(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a usable logger rather than running silent
		l = zap.NewExample()
	}
	Set(l)
}

// Set replaces the global logger.
func Set(l *zap.Logger) {
	current.Store(l.Sugar())
}

// Get returns the global sugared logger.
func Get() *zap.SugaredLogger {
	return current.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current.Load().Sync()
}

// Debug logs a message at debug level
func Debug(msg string) { current.Load().Debug(msg) }

// Debugf logs a formatted message at debug level
func Debugf(format string, args ...any) { current.Load().Debugf(format, args...) }

// Debugw logs a message with key/value pairs at debug level
func Debugw(msg string, keysAndValues ...any) { current.Load().Debugw(msg, keysAndValues...) }

// Info logs a message at info level
func Info(msg string) { current.Load().Info(msg) }

// Infof logs a formatted message at info level
func Infof(format string, args ...any) { current.Load().Infof(format, args...) }

// Infow logs a message with key/value pairs at info level
func Infow(msg string, keysAndValues ...any) { current.Load().Infow(msg, keysAndValues...) }

// Warn logs a message at warn level
func Warn(msg string) { current.Load().Warn(msg) }

// Warnf logs a formatted message at warn level
func Warnf(format string, args ...any) { current.Load().Warnf(format, args...) }

// Warnw logs a message with key/value pairs at warn level
func Warnw(msg string, keysAndValues ...any) { current.Load().Warnw(msg, keysAndValues...) }

// Error logs a message at error level
func Error(msg string) { current.Load().Error(msg) }

// Errorf logs a formatted message at error level
func Errorf(format string, args ...any) { current.Load().Errorf(format, args...) }

// Errorw logs a message with key/value pairs at error level
func Errorw(msg string, keysAndValues ...any) { current.Load().Errorw(msg, keysAndValues...) }

// Fatalf logs a formatted message and exits the process
func Fatalf(format string, args ...any) { current.Load().Fatalf(format, args...) }
