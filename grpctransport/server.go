// Package grpctransport implements coreengine/transport.Transport over a
// single bidirectional gRPC stream per connection, carried over the
// network instead of in-process. Its graceful-shutdown shape follows
// GracefulServer's: serve in a goroutine, then on Close race a graceful
// stop against a timeout before forcing the issue.
package grpctransport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/serialize"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
	"github.com/Minecraftian14/RobotsMakingIcecream/eventbus"
)

// ShutdownTimeout bounds how long Close waits for a graceful stop before
// forcing connections closed.
const ShutdownTimeout = 5 * time.Second

// Transport is a coreengine/transport.Transport backed by gRPC: Serve
// accepts peers as a server, Dial reaches out as a client. Either role (or
// both, for a peer that does both) can share one Transport value.
type Transport struct {
	logger   rlog.Logger
	codec    serialize.Codec
	notifier eventbus.Bus

	invPool  *wire.InvocationPool
	execPool *wire.ExecutionPool

	mu         sync.Mutex
	grpcServer *grpc.Server
	listener   net.Listener
	conns      map[string]*conn
}

// New creates a Transport. codec defaults to serialize.NewJSON when nil.
func New(codec serialize.Codec, logger rlog.Logger) *Transport {
	if codec == nil {
		codec = serialize.NewJSON()
	}
	return &Transport{
		logger:   rlog.OrStd(logger),
		codec:    codec,
		invPool:  wire.NewInvocationPool(),
		execPool: wire.NewExecutionPool(),
		conns:    make(map[string]*conn),
	}
}

// WithNotifier sets the bus connection and frame lifecycle events publish
// to, returning t for chaining. A nil notifier (the default) disables
// publication entirely.
func (t *Transport) WithNotifier(notifier eventbus.Bus) *Transport {
	t.notifier = notifier
	return t
}

// Serve implements transport.Transport: it listens on address and answers
// every accepted Channel stream by handing its frames to handler. It
// blocks until ctx is canceled or the listener fails.
func (t *Transport) Serve(ctx context.Context, address string, handler transport.FrameHandler) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("grpctransport: listen: %w", err)
	}

	t.mu.Lock()
	t.listener = lis
	t.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(UnaryServerLoggingInterceptor(t.logger)),
		grpc.StreamInterceptor(StreamServerLoggingInterceptor(t.logger)),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	registerChannelServer(t.grpcServer, &serverBinding{t: t, handler: handler})
	server := t.grpcServer
	t.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()

	t.logger.Info("grpctransport: serving", "address", address)

	select {
	case <-ctx.Done():
		t.ShutdownWithTimeout(ShutdownTimeout)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// serverBinding adapts a Transport plus the handler a particular Serve
// call was given into the channelServer the hand-authored ServiceDesc
// dispatches to.
type serverBinding struct {
	t       *Transport
	handler transport.FrameHandler
}

func (b *serverBinding) serveChannel(stream grpc.ServerStream) error {
	c := newConn(stream, b.t.codec, b.t.invPool, b.t.execPool, b.t.logger, b.t.notifier, nil)
	b.t.trackConn(c)
	defer b.t.untrackConn(c)
	c.notifyEstablished(false)

	err := c.recvLoop(b.handler)
	b.t.logger.Info("grpctransport: connection closed", "connection", c.ID(), "error", err)
	return nil
}

func (t *Transport) trackConn(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[c.ID()] = c
}

func (t *Transport) untrackConn(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, c.ID())
}

// ShutdownWithTimeout stops accepting new streams and waits up to timeout
// for in-flight ones to finish before forcing an immediate stop.
func (t *Transport) ShutdownWithTimeout(timeout time.Duration) {
	t.mu.Lock()
	server := t.grpcServer
	t.mu.Unlock()
	if server == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.logger.Warn("grpctransport: graceful shutdown timed out", "timeout", timeout)
		server.Stop()
	}
}

// Addr returns the address Serve bound to, once its listener is up. Tests
// that ask Serve for port 0 use this to learn the port the OS assigned.
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.ShutdownWithTimeout(ShutdownTimeout)
	return nil
}

var _ transport.Transport = (*Transport)(nil)
