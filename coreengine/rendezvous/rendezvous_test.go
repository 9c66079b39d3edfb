package rendezvous

import (
	"context"
	"testing"
	"time"

	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(Config{
		SweepInterval: 20 * time.Millisecond,
		PendingTTL:    50 * time.Millisecond,
		LateTTL:       50 * time.Millisecond,
	})
}

func TestBeginThenPostThenWaitDelivers(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	go s.Post(&wire.ExecutionEvent{TransactionID: tid, Result: 42})

	event, err := s.Wait(context.Background(), tid, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, event.Result)
}

func TestPostBeforeWaitIsBuffered(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	s.Post(&wire.ExecutionEvent{TransactionID: tid, Result: "late"})

	assert.True(t, s.ContainsDelivered(tid))

	event, err := s.Wait(context.Background(), tid, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", event.Result)
}

func TestPostIsIdempotent(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	s.Post(&wire.ExecutionEvent{TransactionID: tid, Result: "first"})
	s.Post(&wire.ExecutionEvent{TransactionID: tid, Result: "second"})

	event, err := s.Wait(context.Background(), tid, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", event.Result)
}

func TestWaitTimesOut(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	_, err := s.Wait(context.Background(), tid, 10*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *coreerrors.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
	assert.False(t, s.ContainsPending(tid))
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Wait(ctx, tid, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnknownTransactionFails(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	_, err := s.Wait(context.Background(), 999, time.Second)
	require.Error(t, err)
	var unknown *coreerrors.UnknownObjectError
	assert.ErrorAs(t, err, &unknown)
}

func TestSweepTimesOutAbandonedTransaction(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	time.Sleep(150 * time.Millisecond)

	assert.False(t, s.ContainsPending(tid))
}

func TestAbortWakesWaiter(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	tid := s.Begin()
	connErr := &coreerrors.ConnectionClosedError{ConnectionID: "conn-1"}
	go s.Abort(tid, connErr)

	event, err := s.Wait(context.Background(), tid, time.Second)
	require.NoError(t, err)
	require.Error(t, event.Err)
	assert.ErrorAs(t, event.Err, &connErr)
}
