// Package rlog defines the structured logging interface shared across the
// RMI core, following the same shape as commbus.BusLogger and
// coreengine/grpc.Logger: keysAndValues is a flat
// alternating slice of (key, value, key, value, ...).
package rlog

import "log"

// Logger is implemented by anything that can record structured events.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// stdLogger wraps the standard library logger for default use.
type stdLogger struct{}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	log.Printf("[DEBUG] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, keysAndValues)
}

// Std returns a Logger backed by the standard library "log" package.
func Std() Logger {
	return &stdLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...any) {}
func (noopLogger) Info(msg string, keysAndValues ...any)  {}
func (noopLogger) Warn(msg string, keysAndValues ...any)  {}
func (noopLogger) Error(msg string, keysAndValues ...any) {}

// Noop returns a Logger that discards everything.
func Noop() Logger {
	return noopLogger{}
}

// OrStd returns logger unchanged if non-nil, else the standard logger.
// Every constructor in this module accepts a nil Logger and falls back
// through this helper, matching NewInMemoryCommBusWithLogger's guard.
func OrStd(logger Logger) Logger {
	if logger == nil {
		return Std()
	}
	return logger
}
