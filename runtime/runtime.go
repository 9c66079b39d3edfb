// Package runtime wires together the registry, host table, proxy cache,
// rendezvous store, invoker, and dispatcher into the single object an
// application embeds — the facade a hosting process builds against.
package runtime

import (
	"context"
	"reflect"
	"time"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/dispatch"
	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/hosttable"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/invoke"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/registry"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rendezvous"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Runtime is one RMI core instance: a registry, a host table, a proxy
// cache, a rendezvous store, and the invoke/dispatch pair that tie them to
// a transport.
type Runtime struct {
	logger rlog.Logger

	registry   *registry.Registry
	hosts      *hosttable.Table
	cache      *proxy.Cache
	builders   *proxy.BuilderRegistry
	rendezvous *rendezvous.Store
	invoker    *invoke.Invoker
	dispatcher *dispatch.Dispatcher
	pool       *dispatch.WorkerPool

	invPool  *wire.InvocationPool
	execPool *wire.ExecutionPool

	shutdownTimeout time.Duration
}

// New creates a Runtime ready to register types and host objects.
func New(cfg Config) *Runtime {
	cfg = cfg.withDefaults()
	logger := rlog.OrStd(cfg.Logger)

	rt := &Runtime{
		logger:          logger,
		registry:        registry.New(logger),
		hosts:           hosttable.New(),
		cache:           proxy.NewCache(),
		builders:        proxy.NewBuilderRegistry(),
		rendezvous:      rendezvous.New(cfg.Rendezvous),
		invPool:         wire.NewInvocationPool(),
		execPool:        wire.NewExecutionPool(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	rt.invoker = invoke.New(rt.registry, rt.hosts, rt.cache, rt.builders, rt.rendezvous, rt.invPool, logger)
	rt.pool = dispatch.NewWorkerPool(cfg.WorkerPoolSize, cfg.WorkerQueueDepth)
	rt.dispatcher = rt.newDispatcher(logger)
	return rt
}

func (rt *Runtime) newDispatcher(logger rlog.Logger) *dispatch.Dispatcher {
	return dispatch.New(rt.registry, rt.hosts, rt.cache, rt.builders, rt.invoker, rt.execPool, rt.pool, logger)
}

// RegisterRemotable registers a type and its builder in one step: builder
// is the constructor every future CreateRemote call for this capability
// set needs, and dispatch needs the same constructor to decode a remote
// reference arriving as a method argument or return value. policies may be
// nil to accept every method's default CallPolicy.
// A capability already known to the registry — because an earlier
// RegisterRemotable call reached it transitively through some other
// method's parameter or return type — still needs its own builder
// registered explicitly, since a builder is a Go constructor the registry
// has no way to discover on its own. That case is not an error here: it is
// the expected second half of registering a capability that showed up
// first as someone else's dependency.
func RegisterRemotable[T any](rt *Runtime, policies map[string]registry.CallPolicy, builder func(h *proxy.Handle) T) (*registry.TypeDescriptor, error) {
	var zero T
	capability := reflect.TypeOf(&zero).Elem()

	td, ok := rt.registry.TypeOf(capability)
	if !ok {
		var err error
		td, err = rt.registry.RegisterRemotable(capability, policies)
		if err != nil {
			return nil, err
		}
	}
	rt.builders.Register(capability, func(h *proxy.Handle) any { return builder(h) })
	return td, nil
}

// IsRegistered reports whether T has already been registered.
func IsRegistered[T any](rt *Runtime) bool {
	var zero T
	return rt.registry.IsRegistered(reflect.TypeOf(&zero).Elem())
}

// Host assigns obj the next available object_id.
func (rt *Runtime) Host(obj any) int64 { return rt.hosts.Host(obj) }

// HostWithID hosts obj under an explicit id.
func (rt *Runtime) HostWithID(id int64, obj any) error { return rt.hosts.HostWithID(id, obj) }

// CreateRemote returns the proxy for (conn, objectID), building it with
// wrap the first time and returning the cached value on every later call.
func CreateRemote[T any](rt *Runtime, conn transport.Connection, objectID int64, wrap func(h *proxy.Handle) T) T {
	return proxy.CreateRemote(rt.cache, rt.invoker, conn, objectID, wrap)
}

// Dispatcher returns the transport.FrameHandler that answers invocation
// frames; execution frames must additionally be routed to PostExecution so
// the rendezvous store can wake blocked callers (see Handler).
func (rt *Runtime) Dispatcher() *dispatch.Dispatcher { return rt.dispatcher }

// PostExecution delivers an inbound execution frame to the rendezvous
// store. Call this from a transport's FrameHandler.HandleExecution.
func (rt *Runtime) PostExecution(event *wire.ExecutionEvent) { rt.rendezvous.Post(event) }

// HasLastResult reports whether any non-blocking call has been issued yet.
func (rt *Runtime) HasLastResult() bool {
	return rt.invoker.HasLastResult()
}

// GetLastResult resolves the most recently issued non-blocking call's
// async-execution record: the single shared "last transaction" slot a
// single-threaded caller can use instead of keeping the transaction id
// itself. It owns the wait, like GetResult: it blocks up to whichever is
// longer of that call's own response_timeout and timeout.
func (rt *Runtime) GetLastResult(ctx context.Context, timeout time.Duration) (any, error, bool) {
	return rt.invoker.AwaitLastResult(ctx, timeout)
}

// GetResult resolves a specific non-blocking call's async-execution record
// by its transaction id. It owns the wait: the effective timeout is
// whichever is longer of the call's own response_timeout baseline and
// timeout, and the wait reads directly from the rendezvous store the
// transport's receive loop posts into. ok reports whether transactionID
// names a non-blocking call at all; err carries a timeout or application
// error once it is.
func (rt *Runtime) GetResult(ctx context.Context, transactionID int64, timeout time.Duration) (any, error, bool) {
	return rt.invoker.AwaitResult(ctx, transactionID, timeout)
}

// LastTransactionID returns the most recently issued non-blocking call's
// transaction id, for a caller that wants to address GetResult directly
// instead of relying on the shared GetLastResult slot.
func (rt *Runtime) LastTransactionID() (int64, bool) {
	return rt.invoker.LastTransactionID()
}

// ShutdownExecutor stops accepting new inbound work and waits for queued
// work to finish. If that takes longer than Config.ShutdownTimeout it logs
// a warning and returns a ShutdownError; queued and running jobs are not
// canceled and keep draining in the background, and the number of jobs
// still pending is not logged. Mirrors GracefulServer.ShutdownWithTimeout's
// done-channel-plus-timer shape.
func (rt *Runtime) ShutdownExecutor(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rt.pool.Shutdown()
		close(done)
	}()

	timeout := rt.shutdownTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		rt.rendezvous.Close()
		return nil
	case <-ctx.Done():
		rt.logger.Warn("runtime: shutdown aborted by context", "error", ctx.Err())
		rt.rendezvous.Close()
		return ctx.Err()
	case <-timer.C:
		rt.logger.Warn("runtime: graceful shutdown timed out, worker pool may still be draining", "timeout", timeout)
		rt.rendezvous.Close()
		return &coreerrors.ShutdownError{}
	}
}
