// Package proxy builds the polymorphic handles that the invoke package's
// outbound path calls through. Go has no runtime facility for
// synthesizing an arbitrary interface implementation the way a dynamic
// proxy would in a reflective target, so the capability set is recovered
// with generics instead: CreateRemote takes a small constructor, supplied
// once per declared interface, that wraps a generic *Handle into the
// concrete type the caller wants to hold. The cache still guarantees the
// invariant that matters — repeated creation for the same (connection,
// object_id) returns the exact same value, not merely an equivalent one —
// because the already-wrapped value is what gets cached, not the *Handle
// alone.
//
// The cache-then-build shape is grounded on the per-connection proxy table
// in aghassemi/go.ref's services/mgmt/node/impl/proxy invoker, adapted from
// a single global table keyed by name to one keyed by (connection,
// object_id).
package proxy

import (
	"context"
	"reflect"
	"sync"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Connection identifies the peer a handle forwards calls across. Transport
// implementations supply concrete Connection values; the cache only needs
// their identity.
type Connection interface {
	ID() string
}

// Invoker performs an outbound call for a handle. The invoke package's
// Invoker implements this; proxy never imports invoke, avoiding a cycle
// between "build a handle" and "call through a handle".
type Invoker interface {
	Invoke(ctx context.Context, conn Connection, objectID int64, capability reflect.Type, delegate any, delegateType reflect.Type, methodName string, args []any) (any, error)
}

// RemoteHandle is satisfied by any wrapper that anonymously embeds *Handle,
// through Go's method promotion. The invoke package uses it to recognize
// an argument that is already a proxy for some remote object, as opposed
// to a local object that still needs hosting.
type RemoteHandle interface {
	ObjectID() int64
	Connection() Connection
}

// Handle is the untyped core of every proxy: enough to route a named call
// to the right connection, object, and (optionally) local delegate.
type Handle struct {
	conn         Connection
	objectID     int64
	capability   reflect.Type
	delegate     any
	delegateType reflect.Type
	invoker      Invoker
}

// ObjectID returns the remote object_id this handle addresses.
func (h *Handle) ObjectID() int64 { return h.objectID }

// Connection returns the connection this handle forwards calls across.
func (h *Handle) Connection() Connection { return h.conn }

// Invoke performs methodName with args, routing through the delegate first
// when the registry's policy calls for it; that decision is made inside
// the Invoker, not here, since only the registry knows the per-method
// policy.
func (h *Handle) Invoke(ctx context.Context, methodName string, args ...any) (any, error) {
	return h.invoker.Invoke(ctx, h.conn, h.objectID, h.capability, h.delegate, h.delegateType, methodName, args)
}

// Cache is a per-connection object_id -> wrapped-handle table. The zero
// value is not usable; construct with NewCache.
type Cache struct {
	mu      sync.RWMutex
	perConn map[string]map[int64]any
}

// NewCache creates an empty proxy cache.
func NewCache() *Cache {
	return &Cache{perConn: make(map[string]map[int64]any)}
}

// CreateRemote returns the proxy for (conn, objectID), building it with wrap
// the first time and returning the identical, previously wrapped value on
// every later call, so a proxy is idempotent to construct. objectID ==
// wire.NullObjectID always yields T's zero value and is never cached.
func CreateRemote[T any](cache *Cache, invoker Invoker, conn Connection, objectID int64, wrap func(*Handle) T) T {
	var zero T
	if objectID == wire.NullObjectID {
		return zero
	}

	capability := reflect.TypeOf(&zero).Elem()

	cache.mu.RLock()
	if byID, ok := cache.perConn[conn.ID()]; ok {
		if existing, ok := byID[objectID]; ok {
			cache.mu.RUnlock()
			return existing.(T)
		}
	}
	cache.mu.RUnlock()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	byID, ok := cache.perConn[conn.ID()]
	if !ok {
		byID = make(map[int64]any)
		cache.perConn[conn.ID()] = byID
	}
	if existing, ok := byID[objectID]; ok {
		return existing.(T)
	}

	h := &Handle{conn: conn, objectID: objectID, capability: capability, invoker: invoker}
	built := wrap(h)
	byID[objectID] = built
	observability.SetProxyCacheSize(conn.ID(), len(byID))
	return built
}

// CreateRemoteWithDelegate is CreateRemote plus a local delegate object
// identity- and hash-style operations whose policy marks
// DelegateIdentity or DelegateHash resolve against delegate instead of
// crossing the wire.
func CreateRemoteWithDelegate[T any](cache *Cache, invoker Invoker, conn Connection, objectID int64, delegate any, delegateType reflect.Type, wrap func(*Handle) T) T {
	var zero T
	if objectID == wire.NullObjectID {
		return zero
	}

	capability := reflect.TypeOf(&zero).Elem()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	byID, ok := cache.perConn[conn.ID()]
	if !ok {
		byID = make(map[int64]any)
		cache.perConn[conn.ID()] = byID
	}
	if existing, ok := byID[objectID]; ok {
		return existing.(T)
	}

	h := &Handle{conn: conn, objectID: objectID, capability: capability, delegate: delegate, delegateType: delegateType, invoker: invoker}
	built := wrap(h)
	byID[objectID] = built
	observability.SetProxyCacheSize(conn.ID(), len(byID))
	return built
}

// Forget drops every proxy cached for a connection, called when the
// connection closes.
func (c *Cache) Forget(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perConn, conn.ID())
	observability.SetProxyCacheSize(conn.ID(), 0)
}

// Len reports how many proxies are cached for a connection.
func (c *Cache) Len(conn Connection) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.perConn[conn.ID()])
}
