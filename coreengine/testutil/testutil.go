// Package testutil provides shared test doubles for exercising the RMI
// core in isolation: a capturing logger and a fixture remotable capability
// set with its proxy wrapper.
package testutil

import (
	"context"
	"sync"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
)

// =============================================================================
// CAPTURING LOGGER
// =============================================================================

// CapturingLogger implements rlog.Logger and records every call for
// assertion instead of writing anywhere.
type CapturingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level         string
	Message       string
	KeysAndValues []any
}

// NewCapturingLogger creates an empty CapturingLogger.
func NewCapturingLogger() *CapturingLogger {
	return &CapturingLogger{}
}

func (l *CapturingLogger) Debug(msg string, keysAndValues ...any) { l.record("debug", msg, keysAndValues) }
func (l *CapturingLogger) Info(msg string, keysAndValues ...any)  { l.record("info", msg, keysAndValues) }
func (l *CapturingLogger) Warn(msg string, keysAndValues ...any)  { l.record("warn", msg, keysAndValues) }
func (l *CapturingLogger) Error(msg string, keysAndValues ...any) { l.record("error", msg, keysAndValues) }

func (l *CapturingLogger) record(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, KeysAndValues: kv})
}

// Entries returns a copy of every captured log call.
func (l *CapturingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasMessage reports whether any entry at level has exactly message as its
// message.
func (l *CapturingLogger) HasMessage(level, message string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// =============================================================================
// FIXTURE REMOTABLE
// =============================================================================

// Echo is a minimal remotable capability set for tests that just need
// something to register and call across a connection.
type Echo interface {
	Ping(message string) string
}

// EchoImpl is the local implementation hosted on the server side of a test.
type EchoImpl struct{}

// Ping implements Echo.
func (EchoImpl) Ping(message string) string { return message }

// EchoProxy is the client-side wrapper CreateRemote/CreateRemoteDynamic
// build a Handle into.
type EchoProxy struct{ *proxy.Handle }

// Ping implements Echo by forwarding across the handle's connection.
func (p *EchoProxy) Ping(message string) string {
	result, err := p.Invoke(context.Background(), "Ping", message)
	if err != nil {
		return ""
	}
	s, _ := result.(string)
	return s
}

// WrapEcho is the Builder/wrap constructor tests register for Echo.
func WrapEcho(h *proxy.Handle) Echo { return &EchoProxy{h} }
