package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
)

// LoggingMiddleware logs every message's traffic through the bus.
type LoggingMiddleware struct {
	logger rlog.Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware. logger defaults to
// rlog.Std() when nil.
func NewLoggingMiddleware(logger rlog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: rlog.OrStd(logger)}
}

// Before logs message receipt.
func (m *LoggingMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	m.logger.Debug("bus message received", "type", MessageType(message), "category", message.Category())
	return message, nil
}

// After logs message completion.
func (m *LoggingMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	if err != nil {
		m.logger.Warn("bus message failed", "type", MessageType(message), "error", err.Error())
	} else {
		m.logger.Debug("bus message completed", "type", MessageType(message))
	}
	return result, nil
}

// circuitState tracks one message type's circuit breaker state.
type circuitState struct {
	failures    int
	lastFailure time.Time
	open        bool
	halfOpen    bool
}

// CircuitBreakerMiddleware opens a message type's circuit after a run of
// failures, blocking further attempts until resetTimeout has passed, then
// lets a single attempt through to test recovery.
type CircuitBreakerMiddleware struct {
	failureThreshold int
	resetTimeout     time.Duration
	excludedTypes    map[string]struct{}
	states           map[string]*circuitState
	logger           rlog.Logger
	mu               sync.Mutex
}

// NewCircuitBreakerMiddleware creates a CircuitBreakerMiddleware. Message
// types named in excludedTypes always bypass the breaker.
func NewCircuitBreakerMiddleware(failureThreshold int, resetTimeout time.Duration, excludedTypes []string, logger rlog.Logger) *CircuitBreakerMiddleware {
	excluded := make(map[string]struct{}, len(excludedTypes))
	for _, t := range excludedTypes {
		excluded[t] = struct{}{}
	}
	return &CircuitBreakerMiddleware{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		excludedTypes:    excluded,
		states:           make(map[string]*circuitState),
		logger:           rlog.OrStd(logger),
	}
}

func (m *CircuitBreakerMiddleware) stateFor(msgType string) *circuitState {
	if _, ok := m.states[msgType]; !ok {
		m.states[msgType] = &circuitState{}
	}
	return m.states[msgType]
}

// Before blocks the message if its circuit is open and the reset timeout
// hasn't elapsed yet; otherwise it lets the message through, flagging a
// half-open trial if the timeout just elapsed.
func (m *CircuitBreakerMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	msgType := MessageType(message)
	if _, excluded := m.excludedTypes[msgType]; excluded {
		return message, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.stateFor(msgType)
	if state.open {
		if time.Since(state.lastFailure) >= m.resetTimeout {
			state.open = false
			state.halfOpen = true
			m.logger.Info("circuit half-open", "type", msgType)
		} else {
			m.logger.Warn("circuit open, blocking message", "type", msgType)
			return nil, nil
		}
	}
	return message, nil
}

// After records the outcome against the circuit and opens or closes it as
// the failure threshold or a half-open trial's result dictates.
func (m *CircuitBreakerMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	msgType := MessageType(message)
	if _, excluded := m.excludedTypes[msgType]; excluded {
		return result, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.stateFor(msgType)
	if err != nil {
		state.failures++
		state.lastFailure = time.Now()
		if state.halfOpen {
			state.open = true
			state.halfOpen = false
			m.logger.Warn("circuit reopened", "type", msgType)
		} else if m.failureThreshold > 0 && state.failures >= m.failureThreshold {
			state.open = true
			m.logger.Warn("circuit opened", "type", msgType, "failures", state.failures)
		}
	} else if state.halfOpen {
		state.halfOpen = false
		state.failures = 0
		m.logger.Info("circuit closed", "type", msgType)
	}
	return result, nil
}

// States returns the current "open"/"half-open"/"closed" state of every
// message type the breaker has seen.
func (m *CircuitBreakerMiddleware) States() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.states))
	for t, s := range m.states {
		switch {
		case s.open:
			out[t] = "open"
		case s.halfOpen:
			out[t] = "half-open"
		default:
			out[t] = "closed"
		}
	}
	return out
}

// Reset clears a single message type's breaker state, or every type's
// state when msgType is nil.
func (m *CircuitBreakerMiddleware) Reset(msgType *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msgType != nil {
		delete(m.states, *msgType)
		return
	}
	m.states = make(map[string]*circuitState)
}

var (
	_ Middleware = (*LoggingMiddleware)(nil)
	_ Middleware = (*CircuitBreakerMiddleware)(nil)
)
