package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// memoryConnection is one end of an in-process pipe between two peers.
// Frames sent on it are delivered directly to the remote side's handler,
// on a dedicated goroutine, so a slow handler never blocks the sender —
// the same non-blocking-delivery shape commbus.InMemoryCommBus uses for
// its subscriber fan-out.
type memoryConnection struct {
	id     string
	logger rlog.Logger
	remote *memoryConnection
	peer   FrameHandler

	mu     sync.Mutex
	closed bool
}

func (c *memoryConnection) ID() string { return c.id }

func (c *memoryConnection) SendInvocation(ctx context.Context, event *wire.InvocationEvent) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("transport: connection %q is closed", c.id)
	}
	go c.remote.peer.HandleInvocation(c.remote, event)
	return nil
}

func (c *memoryConnection) SendExecution(ctx context.Context, event *wire.ExecutionEvent) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("transport: connection %q is closed", c.id)
	}
	go c.remote.peer.HandleExecution(c.remote, event)
	return nil
}

func (c *memoryConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Memory is an in-process Transport, useful for tests and the demo binary:
// Pair wires two handlers together directly, with no network or codec in
// between.
type Memory struct {
	logger rlog.Logger
	nextID int64
}

// NewMemory creates an in-process transport.
func NewMemory(logger rlog.Logger) *Memory {
	return &Memory{logger: rlog.OrStd(logger)}
}

// Pair connects two handlers back to back and returns each side's
// Connection, as if one had dialed the other.
func (m *Memory) Pair(clientHandler, serverHandler FrameHandler) (client Connection, server Connection) {
	clientID := atomic.AddInt64(&m.nextID, 1)
	serverID := atomic.AddInt64(&m.nextID, 1)

	c := &memoryConnection{id: fmt.Sprintf("mem-client-%d", clientID), logger: m.logger, peer: clientHandler}
	s := &memoryConnection{id: fmt.Sprintf("mem-server-%d", serverID), logger: m.logger, peer: serverHandler}
	c.remote, s.remote = s, c
	return c, s
}

// Dial and Serve are not meaningful for an in-process pair; Memory's
// intended use is Pair. They satisfy the Transport interface so Memory can
// stand in wherever one is expected.
func (m *Memory) Dial(ctx context.Context, address string, handler FrameHandler) (Connection, error) {
	return nil, fmt.Errorf("transport: Memory has no addressable peers, use Pair")
}

func (m *Memory) Serve(ctx context.Context, address string, handler FrameHandler) error {
	return fmt.Errorf("transport: Memory has no addressable peers, use Pair")
}

func (m *Memory) Close() error { return nil }
