package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvocationPoolReusesAndResets(t *testing.T) {
	pool := NewInvocationPool()

	first := pool.Get()
	first.TransactionID = 7
	first.TargetObjectID = 3
	first.MethodID = 1
	first.Params = []any{42}
	first.Release()

	second := pool.Get()
	assert.Equal(t, int64(0), second.TransactionID)
	assert.Equal(t, int64(0), second.TargetObjectID)
	assert.Equal(t, int32(0), second.MethodID)
	assert.Nil(t, second.Params)
}

func TestExecutionPoolReusesAndResets(t *testing.T) {
	pool := NewExecutionPool()

	first := pool.Get()
	first.TransactionID = 7
	first.OriginObjectID = 3
	first.Result = 42
	first.Release()

	second := pool.Get()
	assert.Equal(t, int64(0), second.TransactionID)
	assert.Nil(t, second.Result)
	assert.Nil(t, second.Err)
}

func TestReleaseNilIsSafe(t *testing.T) {
	var e *InvocationEvent
	assert.NotPanics(t, func() { e.Release() })

	var x *ExecutionEvent
	assert.NotPanics(t, func() { x.Release() })
}

func TestNullObjectIDSentinel(t *testing.T) {
	assert.EqualValues(t, -1, NullObjectID)
}
