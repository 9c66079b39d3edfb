// Package transport declares the boundary between the RMI core and
// whatever carries frames between peers: a Connection that can
// send the two frame shapes, and a FrameHandler the transport delivers
// inbound frames to. grpctransport and the in-memory transport in this
// package both implement this boundary; the core never imports either
// concrete transport.
package transport

import (
	"context"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/proxy"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Connection is a live channel to one peer, capable of carrying both frame
// shapes in either direction. It satisfies proxy.Connection so handles can
// be cached and addressed by it directly.
type Connection interface {
	proxy.Connection
	SendInvocation(ctx context.Context, event *wire.InvocationEvent) error
	SendExecution(ctx context.Context, event *wire.ExecutionEvent) error
	Close() error
}

// FrameHandler receives frames a Connection delivers from its peer. The
// inbound dispatcher (coreengine/dispatch) implements this for invocation
// events; the rendezvous store's Post is driven by it for execution
// events.
type FrameHandler interface {
	HandleInvocation(conn Connection, event *wire.InvocationEvent)
	HandleExecution(conn Connection, event *wire.ExecutionEvent)
}

// Transport establishes connections, as a client dialing out or a server
// accepting peers, and wires every accepted Connection to handler.
type Transport interface {
	Dial(ctx context.Context, address string, handler FrameHandler) (Connection, error)
	Serve(ctx context.Context, address string, handler FrameHandler) error
	Close() error
}
