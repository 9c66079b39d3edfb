package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *InMemoryBus {
	return NewInMemoryBus(time.Second, nil)
}

func countingHandler(counter *int32) HandlerFunc {
	return func(ctx context.Context, msg Message) (any, error) {
		atomic.AddInt32(counter, 1)
		return "ok", nil
	}
}

func failingHandler(errMsg string) HandlerFunc {
	return func(ctx context.Context, msg Message) (any, error) {
		return nil, errors.New(errMsg)
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	bus := newTestBus()
	var a, b int32
	bus.Subscribe("ConnectionEstablished", countingHandler(&a))
	bus.Subscribe("ConnectionEstablished", countingHandler(&b))

	err := bus.Publish(context.Background(), &ConnectionEstablished{ConnectionID: "c1"})

	require.NoError(t, err)
	assert.EqualValues(t, 1, a)
	assert.EqualValues(t, 1, b)
}

func TestPublishWithNoSubscribersIsANoop(t *testing.T) {
	bus := newTestBus()
	err := bus.Publish(context.Background(), &TransactionTimedOut{TransactionID: 1})
	assert.NoError(t, err)
}

func TestUnsubscribeStopsFutureDeliveries(t *testing.T) {
	bus := newTestBus()
	var count int32
	unsubscribe := bus.Subscribe("ExecutionPosted", countingHandler(&count))

	bus.Publish(context.Background(), &ExecutionPosted{TransactionID: 1})
	unsubscribe()
	bus.Publish(context.Background(), &ExecutionPosted{TransactionID: 2})

	assert.EqualValues(t, 1, count)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := newTestBus()
	var count int32
	unsubscribe := bus.Subscribe("ExecutionPosted", countingHandler(&count))
	unsubscribe()
	assert.NotPanics(t, unsubscribe)
}

func TestSendDeliversToRegisteredHandler(t *testing.T) {
	bus := newTestBus()
	var count int32
	require.NoError(t, bus.RegisterHandler("InvocationReceived", countingHandler(&count)))

	err := bus.Send(context.Background(), &InvocationReceived{TransactionID: 1})

	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRegisterHandlerRejectsDuplicateRegistration(t *testing.T) {
	bus := newTestBus()
	var count int32
	require.NoError(t, bus.RegisterHandler("InvocationReceived", countingHandler(&count)))

	err := bus.RegisterHandler("InvocationReceived", countingHandler(&count))

	var alreadyRegistered *HandlerAlreadyRegisteredError
	assert.ErrorAs(t, err, &alreadyRegistered)
}

type pingQuery struct{ value int }

func (q *pingQuery) Category() string { return string(MessageCategoryQuery) }
func (q *pingQuery) IsQuery()         {}

// MessageType routes pingQuery under "pingQuery", the key its handlers are
// registered with.
func (q *pingQuery) MessageType() string { return "pingQuery" }

// untypedEvent is neither a TypedMessage nor one of the package's own
// message types.
type untypedEvent struct{}

func (e *untypedEvent) Category() string { return string(MessageCategoryEvent) }

func TestQuerySyncReturnsHandlerResult(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.RegisterHandler("pingQuery", HandlerFunc(func(ctx context.Context, msg Message) (any, error) {
		return msg.(*pingQuery).value * 2, nil
	})))

	result, err := bus.QuerySync(context.Background(), &pingQuery{value: 21})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestQuerySyncWithoutHandlerReturnsNoHandlerError(t *testing.T) {
	bus := newTestBus()
	_, err := bus.QuerySync(context.Background(), &pingQuery{})
	var noHandler *NoHandlerError
	assert.ErrorAs(t, err, &noHandler)
}

func TestQuerySyncTimesOutWhenHandlerNeverReturns(t *testing.T) {
	bus := NewInMemoryBus(10*time.Millisecond, nil)
	require.NoError(t, bus.RegisterHandler("pingQuery", HandlerFunc(func(ctx context.Context, msg Message) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))

	_, err := bus.QuerySync(context.Background(), &pingQuery{})

	var timeoutErr *QueryTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestLoggingMiddlewareDoesNotAlterMessageFlow(t *testing.T) {
	bus := newTestBus()
	bus.AddMiddleware(NewLoggingMiddleware(nil))
	var count int32
	bus.Subscribe("ConnectionEstablished", countingHandler(&count))

	err := bus.Publish(context.Background(), &ConnectionEstablished{ConnectionID: "c1"})

	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	bus := newTestBus()
	cb := NewCircuitBreakerMiddleware(2, time.Hour, nil, nil)
	bus.AddMiddleware(cb)
	require.NoError(t, bus.RegisterHandler("pingQuery", failingHandler("boom")))

	bus.QuerySync(context.Background(), &pingQuery{})
	bus.QuerySync(context.Background(), &pingQuery{})

	assert.Equal(t, "open", cb.States()["pingQuery"])

	_, err := bus.QuerySync(context.Background(), &pingQuery{})
	assert.Error(t, err)
}

func TestCircuitBreakerExcludedTypesBypassTheBreaker(t *testing.T) {
	bus := newTestBus()
	cb := NewCircuitBreakerMiddleware(1, time.Hour, []string{"pingQuery"}, nil)
	bus.AddMiddleware(cb)
	require.NoError(t, bus.RegisterHandler("pingQuery", failingHandler("boom")))

	bus.QuerySync(context.Background(), &pingQuery{})
	bus.QuerySync(context.Background(), &pingQuery{})

	assert.Empty(t, cb.States())
}

func TestCircuitBreakerHalfOpensAfterResetTimeout(t *testing.T) {
	bus := newTestBus()
	cb := NewCircuitBreakerMiddleware(1, 10*time.Millisecond, nil, nil)
	bus.AddMiddleware(cb)
	require.NoError(t, bus.RegisterHandler("pingQuery", failingHandler("boom")))

	bus.QuerySync(context.Background(), &pingQuery{})
	assert.Equal(t, "open", cb.States()["pingQuery"])

	time.Sleep(20 * time.Millisecond)
	_, err := bus.QuerySync(context.Background(), &pingQuery{})
	assert.EqualError(t, err, "boom", "the half-open trial reaches the handler")
	assert.Equal(t, "open", cb.States()["pingQuery"])
}

func TestClearRemovesHandlersSubscribersAndMiddleware(t *testing.T) {
	bus := newTestBus()
	bus.RegisterHandler("pingQuery", failingHandler("boom"))
	bus.Subscribe("ConnectionEstablished", countingHandler(new(int32)))
	bus.AddMiddleware(NewLoggingMiddleware(nil))

	bus.Clear()

	assert.False(t, bus.HasHandler("pingQuery"))
	assert.Empty(t, bus.GetSubscribers("ConnectionEstablished"))
}

func TestMessageTypeFallsBackToUnknownForUnrecognizedMessages(t *testing.T) {
	assert.Equal(t, "Unknown", MessageType(&untypedEvent{}))
	assert.Equal(t, "ConnectionEstablished", MessageType(&ConnectionEstablished{}))
}
