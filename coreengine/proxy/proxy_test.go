package proxy

import (
	"context"
	"reflect"
	"testing"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string { return c.id }

type fakeInvoker struct {
	calls int
}

func (f *fakeInvoker) Invoke(ctx context.Context, conn Connection, objectID int64, capability reflect.Type, delegate any, delegateType reflect.Type, methodName string, args []any) (any, error) {
	f.calls++
	return "result", nil
}

// Greeter is the capability set under test; a real remotable interface
// would be registered with coreengine/registry, but the proxy package only
// needs the Go type, not the registry entry.
type Greeter interface {
	Greet(name string) string
}

type greeterProxy struct{ h *Handle }

func (p *greeterProxy) Greet(name string) string {
	result, err := p.h.Invoke(context.Background(), "Greet", name)
	if err != nil {
		return ""
	}
	s, _ := result.(string)
	return s
}

func wrapGreeter(h *Handle) Greeter { return &greeterProxy{h} }

func TestCreateRemoteIsIdempotent(t *testing.T) {
	cache := NewCache()
	invoker := &fakeInvoker{}
	conn := &fakeConn{id: "conn-1"}

	first := CreateRemote(cache, invoker, conn, 7, wrapGreeter)
	second := CreateRemote(cache, invoker, conn, 7, wrapGreeter)

	assert.Same(t, first, second, "same (connection, object_id) must yield the identical proxy value")
}

func TestCreateRemoteDistinguishesObjectsAndConnections(t *testing.T) {
	cache := NewCache()
	invoker := &fakeInvoker{}
	connA := &fakeConn{id: "conn-a"}
	connB := &fakeConn{id: "conn-b"}

	a7 := CreateRemote(cache, invoker, connA, 7, wrapGreeter)
	a8 := CreateRemote(cache, invoker, connA, 8, wrapGreeter)
	b7 := CreateRemote(cache, invoker, connB, 7, wrapGreeter)

	assert.NotSame(t, a7, a8)
	assert.NotSame(t, a7, b7)
}

func TestCreateRemoteNullObjectIDYieldsZeroValue(t *testing.T) {
	cache := NewCache()
	invoker := &fakeInvoker{}
	conn := &fakeConn{id: "conn-1"}

	g := CreateRemote(cache, invoker, conn, wire.NullObjectID, wrapGreeter)
	assert.Nil(t, g)
	assert.Equal(t, 0, cache.Len(conn))
}

func TestHandleInvokeRoutesThroughInvoker(t *testing.T) {
	cache := NewCache()
	invoker := &fakeInvoker{}
	conn := &fakeConn{id: "conn-1"}

	g := CreateRemote(cache, invoker, conn, 1, wrapGreeter)
	out := g.Greet("world")

	assert.Equal(t, "result", out)
	assert.Equal(t, 1, invoker.calls)
}

func TestForgetDropsAllProxiesForConnection(t *testing.T) {
	cache := NewCache()
	invoker := &fakeInvoker{}
	conn := &fakeConn{id: "conn-1"}

	CreateRemote(cache, invoker, conn, 1, wrapGreeter)
	CreateRemote(cache, invoker, conn, 2, wrapGreeter)
	require.Equal(t, 2, cache.Len(conn))

	cache.Forget(conn)
	assert.Equal(t, 0, cache.Len(conn))
}
