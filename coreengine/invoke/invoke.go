// Package invoke implements the outbound invocation path: the
// work a proxy's call performs between the moment application code calls a
// method on it and the moment a result (or nothing, for fire-and-forget)
// comes back.
package invoke

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/hosttable"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/registry"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rendezvous"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/typeutil"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

var tracer = otel.Tracer("github.com/Minecraftian14/RobotsMakingIcecream/coreengine/invoke")

// deferredCall is the async-execution record a non_blocking call leaves
// behind: everything AwaitResult needs to later perform the wait and
// decode whatever arrives, without the invoking goroutine sticking around.
// Once a wait actually completes, the record also caches the outcome so a
// second AwaitResult for the same transaction (or a get_last_result that
// lands on it) doesn't re-drain the rendezvous store.
type deferredCall struct {
	conn     proxy.Connection
	md       *registry.MethodDescriptor
	baseline time.Duration

	mu     sync.Mutex
	done   bool
	result any
	err    error
}

// Invoker drives outbound calls for every proxy built from the same
// runtime. It implements proxy.Invoker.
type Invoker struct {
	registry   *registry.Registry
	hosts      *hosttable.Table
	cache      *proxy.Cache
	builders   *proxy.BuilderRegistry
	rendezvous *rendezvous.Store
	pool       *wire.InvocationPool
	logger     rlog.Logger

	deferredMu sync.Mutex
	deferred   map[int64]*deferredCall
	lastTID    int64
	hasLastTID bool
}

// New creates an Invoker.
func New(
	reg *registry.Registry,
	hosts *hosttable.Table,
	cache *proxy.Cache,
	builders *proxy.BuilderRegistry,
	rendz *rendezvous.Store,
	pool *wire.InvocationPool,
	logger rlog.Logger,
) *Invoker {
	return &Invoker{
		registry:   reg,
		hosts:      hosts,
		cache:      cache,
		builders:   builders,
		rendezvous: rendz,
		pool:       pool,
		logger:     rlog.OrStd(logger),
		deferred:   make(map[int64]*deferredCall),
	}
}

// Invoke performs methodName on objectID across conn, routing through
// delegate first if the method's policy calls for it.
func (inv *Invoker) Invoke(ctx context.Context, conn proxy.Connection, objectID int64, capability reflect.Type, delegate any, delegateType reflect.Type, methodName string, args []any) (any, error) {
	ctx, span := tracer.Start(ctx, "invoke."+methodName, oteltrace.WithAttributes(
		attribute.String("method", methodName),
		attribute.Int64("target_object_id", objectID),
	))
	defer span.End()

	start := time.Now()
	result, status, err := inv.invoke(ctx, conn, objectID, capability, delegate, delegateType, methodName, args)
	observability.RecordInvocation(methodName, status, time.Since(start).Seconds())

	span.SetAttributes(attribute.String("status", status))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (inv *Invoker) invoke(ctx context.Context, conn proxy.Connection, objectID int64, capability reflect.Type, delegate any, delegateType reflect.Type, methodName string, args []any) (any, string, error) {
	md, err := inv.registry.MethodByName(capability, methodName)
	if err != nil {
		return nil, "unknown_method", err
	}

	if delegate != nil && ((md.Policy.DelegateIdentity) || (md.Policy.DelegateHash)) {
		result, err := inv.callDelegate(delegate, methodName, args)
		return result, statusOf(err), err
	}

	if md.Policy.Closed {
		return nil, "closed", nil
	}

	tconn, ok := conn.(transport.Connection)
	if !ok {
		return nil, "transport_error", fmt.Errorf("invoke: connection %s cannot carry invocation frames", conn.ID())
	}

	params := make([]any, len(args))
	for i, arg := range args {
		params[i] = inv.promoteArg(md, i, arg)
	}

	if md.Policy.NoReturn {
		event := inv.pool.Get()
		event.TransactionID = -1
		event.TargetObjectID = objectID
		event.MethodID = md.MethodID
		event.Params = params
		if err := tconn.SendInvocation(ctx, event); err != nil {
			return nil, "transport_error", err
		}
		return zeroValueOf(md.ReturnType), "ok", nil
	}

	tid := inv.rendezvous.Begin()
	oteltrace.SpanFromContext(ctx).SetAttributes(attribute.Int64("transaction_id", tid))
	event := inv.pool.Get()
	event.TransactionID = tid
	event.TargetObjectID = objectID
	event.MethodID = md.MethodID
	event.Params = params
	if err := tconn.SendInvocation(ctx, event); err != nil {
		return nil, "transport_error", err
	}

	if md.Policy.NonBlocking {
		inv.registerDeferred(tid, md, conn)
		return zeroValueOf(md.ReturnType), "deferred", nil
	}

	result, err := inv.rendezvous.Wait(ctx, tid, md.Policy.ResponseTimeout)
	if err != nil {
		return nil, "timeout", err
	}
	defer result.Release()
	if result.Err != nil {
		return nil, "application_error", result.Err
	}
	decoded, err := inv.decodeResult(md, conn, result.Result)
	return decoded, statusOf(err), err
}

func statusOf(err error) string {
	if err != nil {
		return "application_error"
	}
	return "ok"
}

// registerDeferred records tid's async-execution entry and remembers it as
// the most recently issued deferred transaction, for get_last_result.
func (inv *Invoker) registerDeferred(tid int64, md *registry.MethodDescriptor, conn proxy.Connection) {
	rec := &deferredCall{conn: conn, md: md, baseline: md.Policy.ResponseTimeout}

	inv.deferredMu.Lock()
	inv.deferred[tid] = rec
	inv.lastTID = tid
	inv.hasLastTID = true
	inv.deferredMu.Unlock()
}

// AwaitResult resolves transactionID's async-execution record: get_result
// owns the wait, blocking up to whichever is longer of the method's own
// ResponseTimeout baseline and extraTimeout. ok reports whether
// transactionID names a deferred call at all; a timed-out or failed wait
// still returns ok=true with err set, since the transaction is known, just
// not yet resolved. A wait that does complete is cached on the record, so a
// later call for the same transaction (directly, or through
// AwaitLastResult) returns the cached outcome instead of waiting again.
func (inv *Invoker) AwaitResult(ctx context.Context, transactionID int64, extraTimeout time.Duration) (any, error, bool) {
	inv.deferredMu.Lock()
	rec, ok := inv.deferred[transactionID]
	inv.deferredMu.Unlock()
	if !ok {
		return nil, nil, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.done {
		return rec.result, rec.err, true
	}

	timeout := rec.baseline
	if extraTimeout > timeout {
		timeout = extraTimeout
	}

	event, err := inv.rendezvous.Wait(ctx, transactionID, timeout)
	if err != nil {
		return nil, err, true
	}
	defer event.Release()

	var result any
	if event.Err != nil {
		err = event.Err
	} else {
		result, err = inv.decodeResult(rec.md, rec.conn, event.Result)
	}

	rec.done = true
	rec.result = result
	rec.err = err
	return result, err, true
}

// HasLastResult reports whether any non_blocking call has been issued yet.
func (inv *Invoker) HasLastResult() bool {
	inv.deferredMu.Lock()
	defer inv.deferredMu.Unlock()
	return inv.hasLastTID
}

// AwaitLastResult is AwaitResult against the most recently issued deferred
// transaction id, the single-threaded-client convenience get_last_result
// is built on.
func (inv *Invoker) AwaitLastResult(ctx context.Context, extraTimeout time.Duration) (any, error, bool) {
	inv.deferredMu.Lock()
	tid, ok := inv.lastTID, inv.hasLastTID
	inv.deferredMu.Unlock()
	if !ok {
		return nil, nil, false
	}
	return inv.AwaitResult(ctx, tid, extraTimeout)
}

// LastTransactionID returns the most recently issued deferred transaction
// id, for callers that want to address get_result directly rather than
// through the shared get_last_result slot.
func (inv *Invoker) LastTransactionID() (int64, bool) {
	inv.deferredMu.Lock()
	defer inv.deferredMu.Unlock()
	return inv.lastTID, inv.hasLastTID
}

func (inv *Invoker) callDelegate(delegate any, methodName string, args []any) (any, error) {
	v := reflect.ValueOf(delegate)
	method := v.MethodByName(methodName)
	if !method.IsValid() {
		return nil, fmt.Errorf("invoke: delegate %T has no method %q", delegate, methodName)
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := method.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		var err error
		if e, ok := out[len(out)-1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	}
}

// promoteArg turns an application-level argument into its wire
// representation: a remote object is already a proxy.RemoteHandle and
// contributes its object_id directly; a local object is hosted so the peer
// can address it; a nil remotable reference becomes the null sentinel;
// anything else (plain values) passes through unchanged.
func (inv *Invoker) promoteArg(md *registry.MethodDescriptor, index int, arg any) any {
	isRemotableParam := false
	for _, i := range md.LocalParamIndices {
		if i == index {
			isRemotableParam = true
			break
		}
	}
	if !isRemotableParam {
		return arg
	}
	if arg == nil {
		return wire.NullObjectID
	}
	if rh, ok := arg.(proxy.RemoteHandle); ok {
		return rh.ObjectID()
	}
	return inv.hosts.Host(arg)
}

// decodeResult turns a wire result back into an application-level value:
// a remotable return type is rebuilt as a proxy over the same connection,
// anything else is coerced to its declared static type.
func (inv *Invoker) decodeResult(md *registry.MethodDescriptor, conn proxy.Connection, result any) (any, error) {
	if md.ReturnType == nil {
		return nil, nil
	}
	if md.IsRemoteReturn {
		objectID, ok := typeutil.SafeInt(result)
		if !ok {
			return nil, fmt.Errorf("invoke: remote return for %s was not an object id", md.Name)
		}
		return proxy.CreateRemoteDynamic(inv.cache, inv, conn, int64(objectID), md.ReturnType, inv.builders)
	}
	value, err := typeutil.CoerceTo(result, md.ReturnType)
	if err != nil {
		return nil, err
	}
	return value.Interface(), nil
}

func zeroValueOf(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

var _ proxy.Invoker = (*Invoker)(nil)
