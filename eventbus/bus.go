package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
)

// subscriberEntry holds a subscriber with a unique id so Subscribe's
// returned unsubscribe closure removes exactly the right entry.
type subscriberEntry struct {
	id      string
	handler HandlerFunc
}

// InMemoryBus is the Bus this module runs: thread-safe, single-process,
// async event fan-out with a synchronous request-response path for
// queries.
type InMemoryBus struct {
	handlers     map[string]HandlerFunc
	subscribers  map[string][]subscriberEntry
	middleware   []Middleware
	queryTimeout time.Duration
	nextSubID    uint64
	logger       rlog.Logger
	mu           sync.RWMutex
}

// NewInMemoryBus creates a bus whose queries time out after queryTimeout.
// logger defaults to rlog.Std() when nil.
func NewInMemoryBus(queryTimeout time.Duration, logger rlog.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers:     make(map[string]HandlerFunc),
		subscribers:  make(map[string][]subscriberEntry),
		middleware:   make([]Middleware, 0),
		queryTimeout: queryTimeout,
		logger:       rlog.OrStd(logger),
	}
}

// Publish fans an event out to every subscriber concurrently. Subscriber
// errors are logged but never stop other subscribers or fail the publish.
func (b *InMemoryBus) Publish(ctx context.Context, event Message) error {
	eventType := MessageType(event)

	processed, err := b.runBefore(ctx, event)
	if err != nil {
		return err
	}
	if processed == nil {
		b.logger.Debug("event aborted by middleware", "event_type", eventType)
		return nil
	}

	b.mu.RLock()
	entries := append([]subscriberEntry(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	if len(entries) == 0 {
		b.logger.Debug("no subscribers for event", "event_type", eventType)
		_, _ = b.runAfter(ctx, event, nil, nil)
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(entries))
	for i, entry := range entries {
		wg.Add(1)
		go func(idx int, h HandlerFunc) {
			defer wg.Done()
			if _, err := h(ctx, processed); err != nil {
				errs[idx] = err
				b.logger.Warn("subscriber failed", "event_type", eventType, "index", idx, "error", err.Error())
			}
		}(i, entry.handler)
	}
	wg.Wait()

	var firstErr error
	for _, e := range errs {
		if e != nil {
			firstErr = e
			break
		}
	}
	_, _ = b.runAfter(ctx, event, nil, firstErr)
	return nil
}

// Send delivers a command to its single registered handler, if any.
func (b *InMemoryBus) Send(ctx context.Context, command Message) error {
	messageType := MessageType(command)

	processed, err := b.runBefore(ctx, command)
	if err != nil {
		return err
	}
	if processed == nil {
		b.logger.Debug("command aborted by middleware", "message_type", messageType)
		return nil
	}

	b.mu.RLock()
	handler, ok := b.handlers[messageType]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug("no handler for command", "message_type", messageType)
		return nil
	}

	_, handlerErr := handler(ctx, processed)
	if handlerErr != nil {
		b.logger.Warn("command handler failed", "message_type", messageType, "error", handlerErr.Error())
	}
	_, _ = b.runAfter(ctx, command, nil, handlerErr)
	return handlerErr
}

// QuerySync sends a query to its handler and waits for the response, or
// for b's query timeout to elapse.
func (b *InMemoryBus) QuerySync(ctx context.Context, query Query) (any, error) {
	messageType := MessageType(query)

	processed, err := b.runBefore(ctx, query)
	if err != nil {
		return nil, err
	}
	if processed == nil {
		return nil, NewNoHandlerError(messageType)
	}

	b.mu.RLock()
	handler, ok := b.handlers[messageType]
	b.mu.RUnlock()
	if !ok {
		return nil, NewNoHandlerError(messageType)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, e := handler(timeoutCtx, processed)
		resultCh <- result{value: v, err: e}
	}()

	select {
	case <-timeoutCtx.Done():
		timeoutErr := NewQueryTimeoutError(messageType, b.queryTimeout.Seconds())
		_, _ = b.runAfter(ctx, query, nil, timeoutErr)
		return nil, timeoutErr
	case res := <-resultCh:
		finalResult, afterErr := b.runAfter(ctx, query, res.value, res.err)
		if afterErr != nil {
			return finalResult, afterErr
		}
		return finalResult, res.err
	}
}

// Subscribe registers handler for every future Publish of eventType,
// returning an idempotent unsubscribe function.
func (b *InMemoryBus) Subscribe(eventType string, handler HandlerFunc) func() {
	subID := fmt.Sprintf("sub_%d", atomic.AddUint64(&b.nextSubID, 1))

	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: subID, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("subscribed", "event_type", eventType, "subscriber_id", subID)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.subscribers[eventType]
		for i, entry := range entries {
			if entry.id == subID {
				b.subscribers[eventType] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// RegisterHandler registers the single handler for messageType. Only one
// handler per message type is allowed.
func (b *InMemoryBus) RegisterHandler(messageType string, handler HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[messageType]; exists {
		return NewHandlerAlreadyRegisteredError(messageType)
	}
	b.handlers[messageType] = handler
	return nil
}

// AddMiddleware appends middleware to the chain, executed in registration
// order on Before and reverse order on After.
func (b *InMemoryBus) AddMiddleware(middleware Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// HasHandler reports whether a handler is registered for messageType.
func (b *InMemoryBus) HasHandler(messageType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[messageType]
	return ok
}

// GetSubscribers returns the handlers currently subscribed to eventType.
func (b *InMemoryBus) GetSubscribers(eventType string) []HandlerFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.subscribers[eventType]
	out := make([]HandlerFunc, len(entries))
	for i, e := range entries {
		out[i] = e.handler
	}
	return out
}

// Clear removes every handler, subscriber, and middleware. Tests use this
// between cases that share a bus.
func (b *InMemoryBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string]HandlerFunc)
	b.subscribers = make(map[string][]subscriberEntry)
	b.middleware = make([]Middleware, 0)
}

func (b *InMemoryBus) runBefore(ctx context.Context, message Message) (Message, error) {
	b.mu.RLock()
	chain := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	current := message
	for _, mw := range chain {
		result, err := mw.Before(ctx, current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		current = result
	}
	return current, nil
}

func (b *InMemoryBus) runAfter(ctx context.Context, message Message, result any, err error) (any, error) {
	b.mu.RLock()
	chain := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	current := result
	for i := len(chain) - 1; i >= 0; i-- {
		afterResult, afterErr := chain[i].After(ctx, message, current, err)
		if afterErr != nil {
			err = afterErr
		}
		if afterResult != nil {
			current = afterResult
		}
	}
	return current, err
}

var _ Bus = (*InMemoryBus)(nil)
