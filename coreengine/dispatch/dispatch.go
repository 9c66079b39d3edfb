// Package dispatch implements the inbound execution path: what
// happens when an invocation frame arrives — resolving the target,
// decoding its arguments, running the method on a worker, and sending the
// execution frame back (unless the caller asked for no reply).
package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/hosttable"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/registry"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/typeutil"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

var tracer = otel.Tracer("github.com/Minecraftian14/RobotsMakingIcecream/coreengine/dispatch")

// Dispatcher answers invocation frames arriving on any connection. One
// Dispatcher serves every connection a runtime accepts or dials; the
// worker pool, not a per-connection goroutine, is what bounds concurrency.
type Dispatcher struct {
	registry *registry.Registry
	hosts    *hosttable.Table
	cache    *proxy.Cache
	builders *proxy.BuilderRegistry
	invoker  proxy.Invoker
	execPool *wire.ExecutionPool
	pool     *WorkerPool
	logger   rlog.Logger
}

// New creates a Dispatcher backed by pool. invoker is the same invoke.Invoker
// the runtime's outbound path uses, so a remotable argument decoded here can
// itself be called back across the connection it arrived on.
func New(
	reg *registry.Registry,
	hosts *hosttable.Table,
	cache *proxy.Cache,
	builders *proxy.BuilderRegistry,
	invoker proxy.Invoker,
	execPool *wire.ExecutionPool,
	pool *WorkerPool,
	logger rlog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		hosts:    hosts,
		cache:    cache,
		builders: builders,
		invoker:  invoker,
		execPool: execPool,
		pool:     pool,
		logger:   rlog.OrStd(logger),
	}
}

// HandleInvocation resolves event's target and method, decodes its
// arguments, and submits the call to the worker pool. The transport's read
// loop blocks only while the worker pool's queue is full: submission
// failing because the pool is shut down is logged and the frame is
// dropped, the same treatment given to a dying runtime. A frame that
// cannot be resolved is answered with an error execution frame, unless it
// is fire-and-forget.
func (d *Dispatcher) HandleInvocation(conn transport.Connection, event *wire.InvocationEvent) {
	target, md, args, err := d.resolve(conn, event)
	if err != nil {
		observability.RecordDispatch(unresolvedMethodLabel(event), unresolvedStatus(err), 0)
		if event.TransactionID >= 0 {
			d.reply(conn, event, nil, err)
		}
		return
	}

	submitErr := d.pool.Submit(func() {
		_, span := tracer.Start(context.Background(), "dispatch."+md.Name, oteltrace.WithAttributes(
			attribute.String("method", md.Name),
			attribute.Int64("transaction_id", event.TransactionID),
			attribute.Int64("target_object_id", event.TargetObjectID),
		))
		defer span.End()

		start := time.Now()
		result, callErr := d.call(target, md, args)
		status := statusOf(callErr)
		observability.RecordDispatch(md.Name, status, time.Since(start).Seconds())
		span.SetAttributes(attribute.String("status", status))
		if callErr != nil {
			span.SetStatus(codes.Error, callErr.Error())
		}
		if event.TransactionID < 0 {
			return // fire-and-forget: no reply regardless of outcome
		}
		d.reply(conn, event, result, callErr)
	})
	if submitErr != nil {
		d.logger.Warn("dispatch: dropping invocation, worker pool closed", "transactionID", event.TransactionID)
	}
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return "application_error"
}

func unresolvedMethodLabel(event *wire.InvocationEvent) string {
	return fmt.Sprintf("method#%d", event.MethodID)
}

func unresolvedStatus(err error) string {
	switch err.(type) {
	case *coreerrors.UnknownObjectError:
		return "unknown_object"
	case *coreerrors.UnknownMethodError:
		return "unknown_method"
	default:
		return "resolve_error"
	}
}

// HandleExecution is not implemented by Dispatcher; execution frames are
// routed to the rendezvous store directly by whatever wires transport to
// the runtime (see runtime.Runtime), since answering them needs no target
// resolution.
func (d *Dispatcher) HandleExecution(conn transport.Connection, event *wire.ExecutionEvent) {}

func (d *Dispatcher) resolve(conn transport.Connection, event *wire.InvocationEvent) (any, *registry.MethodDescriptor, []reflect.Value, error) {
	target, ok := d.hosts.Lookup(event.TargetObjectID)
	if !ok {
		return nil, nil, nil, &coreerrors.UnknownObjectError{ObjectID: event.TargetObjectID}
	}
	md, err := d.registry.MethodByID(event.MethodID)
	if err != nil {
		return nil, nil, nil, err
	}

	args := make([]reflect.Value, len(event.Params))
	for i, raw := range event.Params {
		isRemote := false
		for _, idx := range md.LocalParamIndices {
			if idx == i {
				isRemote = true
				break
			}
		}
		if isRemote {
			objectID, ok := typeutil.SafeInt(raw)
			if !ok {
				return nil, nil, nil, fmt.Errorf("dispatch: param %d of method %d was not an object id", i, md.MethodID)
			}
			built, err := proxy.CreateRemoteDynamic(d.cache, d.invoker, conn, int64(objectID), md.ParamTypes[i], d.builders)
			if err != nil {
				return nil, nil, nil, err
			}
			args[i] = reflect.ValueOf(built)
			continue
		}
		value, err := typeutil.CoerceTo(raw, md.ParamTypes[i])
		if err != nil {
			return nil, nil, nil, err
		}
		args[i] = value
	}
	return target, md, args, nil
}

// call runs md on target with args, recovering a panic into an
// ApplicationError so a misbehaving method can never take down the worker
// pool.
func (d *Dispatcher) call(target any, md *registry.MethodDescriptor, args []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &coreerrors.ApplicationError{MethodID: md.MethodID, Cause: fmt.Errorf("%v", r)}
		}
	}()

	method := reflect.ValueOf(target).MethodByName(md.Name)
	if !method.IsValid() {
		return nil, &coreerrors.UnknownMethodError{MethodID: md.MethodID}
	}
	out := method.Call(args)

	if md.HasError {
		if e, ok := out[len(out)-1].Interface().(error); ok && e != nil {
			return nil, &coreerrors.ApplicationError{MethodID: md.MethodID, Cause: e}
		}
	}
	if md.ReturnType == nil {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func (d *Dispatcher) reply(conn transport.Connection, event *wire.InvocationEvent, result any, callErr error) {
	exec := d.execPool.Get()
	exec.TransactionID = event.TransactionID
	exec.MethodID = event.MethodID

	if callErr != nil {
		exec.Err = callErr
	} else if rh, ok := result.(proxy.RemoteHandle); ok {
		exec.Result = rh.ObjectID()
	} else if result != nil {
		id, needsHosting := d.hostIfRemotable(event.MethodID, result)
		if needsHosting {
			exec.Result = id
		} else {
			exec.Result = result
		}
	}

	if err := conn.SendExecution(context.Background(), exec); err != nil {
		d.logger.Warn("dispatch: failed to send execution frame", "transactionID", event.TransactionID, "error", err)
	}
}

// hostIfRemotable hosts result and returns its object_id when the method's
// declared return type is itself a remotable capability set.
func (d *Dispatcher) hostIfRemotable(methodID int32, result any) (int64, bool) {
	md, err := d.registry.MethodByID(methodID)
	if err != nil || !md.IsRemoteReturn {
		return 0, false
	}
	return d.hosts.Host(result), true
}
