// Package wire defines the two frame shapes exchanged by the RMI core:
// the invocation event carries a call outbound, the
// execution event carries its result back. Both are pooled — each frame
// carries a Release method that returns it to a free list, following the
// sync.Pool idiom used by correlatedChanPool in the retrieval pack
// (gford1000/go-saferr's correlated_chan.go): a pooled value is reset to
// its zero-ish state before it is returned to the pool so a stale frame
// can never leak identity into the next transaction.
package wire

import "sync"

// NullObjectID is the sentinel written for a null remotable reference or
// argument: the value on the wire is always an integer object_id, with -1
// standing in for nil.
const NullObjectID int64 = -1

// InvocationEvent is the request frame: (transaction_id, target_object_id,
// method_id, params[]).
type InvocationEvent struct {
	TransactionID  int64
	TargetObjectID int64
	MethodID       int32
	Params         []any

	pool *InvocationPool
}

// Release returns the frame to its pool. Consumers must call Release once
// a transaction has fully completed (result decoded, or frame forwarded
// and no longer needed); correctness does not depend on this, since a frame
// that is never released is simply left to the garbage collector.
func (e *InvocationEvent) Release() {
	if e == nil || e.pool == nil {
		return
	}
	e.TransactionID = 0
	e.TargetObjectID = 0
	e.MethodID = 0
	e.Params = nil
	e.pool.put(e)
}

// ExecutionEvent is the response frame: (transaction_id, origin_object_id,
// method_id, result).
type ExecutionEvent struct {
	TransactionID  int64
	OriginObjectID int64
	MethodID       int32
	Result         any
	Err            error // set when the inbound dispatch failed

	pool *ExecutionPool
}

// Release returns the frame to its pool.
func (e *ExecutionEvent) Release() {
	if e == nil || e.pool == nil {
		return
	}
	e.TransactionID = 0
	e.OriginObjectID = 0
	e.MethodID = 0
	e.Result = nil
	e.Err = nil
	e.pool.put(e)
}

// InvocationPool is a typed wrapper over sync.Pool for InvocationEvent.
type InvocationPool struct {
	pool sync.Pool
}

// NewInvocationPool creates a pool of invocation frames.
func NewInvocationPool() *InvocationPool {
	p := &InvocationPool{}
	p.pool.New = func() any { return &InvocationEvent{pool: p} }
	return p
}

// Get returns a zeroed invocation frame ready to be filled in.
func (p *InvocationPool) Get() *InvocationEvent {
	return p.pool.Get().(*InvocationEvent)
}

func (p *InvocationPool) put(e *InvocationEvent) {
	p.pool.Put(e)
}

// ExecutionPool is a typed wrapper over sync.Pool for ExecutionEvent.
type ExecutionPool struct {
	pool sync.Pool
}

// NewExecutionPool creates a pool of execution frames.
func NewExecutionPool() *ExecutionPool {
	p := &ExecutionPool{}
	p.pool.New = func() any { return &ExecutionEvent{pool: p} }
	return p
}

// Get returns a zeroed execution frame ready to be filled in.
func (p *ExecutionPool) Get() *ExecutionEvent {
	return p.pool.Get().(*ExecutionEvent)
}

func (p *ExecutionPool) put(e *ExecutionEvent) {
	p.pool.Put(e)
}
