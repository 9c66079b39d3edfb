package proxy

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Builder constructs the concrete wrapper for one capability set from a
// bare Handle. Applications supply one per remotable interface, the same
// function CreateRemote's wrap parameter expects, just without the
// compile-time type parameter.
type Builder func(h *Handle) any

// BuilderRegistry maps a capability's reflect.Type to the Builder that
// knows how to wrap a Handle for it. The dispatch path needs this: when it
// decodes an inbound remotable argument, it only has a reflect.Type from
// the method registry, not a compile-time type parameter, so CreateRemote's
// generic form cannot be called directly. Registering a Builder once per
// interface at startup — alongside RegisterRemotable — closes that gap
// without reflection tricks to synthesize an interface implementation,
// which Go's reflect package cannot do.
type BuilderRegistry struct {
	mu       sync.RWMutex
	builders map[reflect.Type]Builder
}

// NewBuilderRegistry creates an empty builder registry.
func NewBuilderRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: make(map[reflect.Type]Builder)}
}

// Register associates capability with builder. Calling it twice for the
// same capability replaces the previous builder.
func (b *BuilderRegistry) Register(capability reflect.Type, builder Builder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builders[capability] = builder
}

// Build invokes the registered builder for capability, if any.
func (b *BuilderRegistry) Build(capability reflect.Type, h *Handle) (any, bool) {
	b.mu.RLock()
	builder, ok := b.builders[capability]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return builder(h), true
}

// CreateRemoteDynamic is CreateRemote without a compile-time type
// parameter: it looks up capability's Builder in builders and uses it in
// place of an explicit wrap function. It returns an error if no Builder was
// registered for capability.
func CreateRemoteDynamic(cache *Cache, invoker Invoker, conn Connection, objectID int64, capability reflect.Type, builders *BuilderRegistry) (any, error) {
	if objectID == wire.NullObjectID {
		return nil, nil
	}

	cache.mu.RLock()
	if byID, ok := cache.perConn[conn.ID()]; ok {
		if existing, ok := byID[objectID]; ok {
			cache.mu.RUnlock()
			return existing, nil
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
		return existing, nil
	}

	h := &Handle{conn: conn, objectID: objectID, capability: capability, invoker: invoker}
	built, ok := builders.Build(capability, h)
	if !ok {
		return nil, fmt.Errorf("proxy: no builder registered for capability %s", capability)
	}
	byID[objectID] = built
	return built, nil
}
