package grpctransport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/serialize"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
	"github.com/Minecraftian14/RobotsMakingIcecream/eventbus"
)

// streamer is the subset of grpc.ServerStream and grpc.ClientStream a
// connection needs: send and receive one message at a time. Both stream
// kinds satisfy it without adaptation.
type streamer interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

// conn is the transport.Connection backing one Channel RPC, client or
// server side. Its id is a fresh uuid so a connection stays addressable
// independently of the network address it happens to ride on.
type conn struct {
	id       string
	address  string
	stream   streamer
	codec    serialize.Codec
	invPool  *wire.InvocationPool
	execPool *wire.ExecutionPool
	logger   rlog.Logger
	notifier eventbus.Bus

	sendMu sync.Mutex

	closeOnce sync.Once
	closeFn   func() error
}

func newConn(stream streamer, codec serialize.Codec, invPool *wire.InvocationPool, execPool *wire.ExecutionPool, logger rlog.Logger, notifier eventbus.Bus, closeFn func() error) *conn {
	return &conn{
		id:       uuid.NewString(),
		stream:   stream,
		codec:    codec,
		invPool:  invPool,
		execPool: execPool,
		logger:   rlog.OrStd(logger),
		notifier: notifier,
		closeFn:  closeFn,
	}
}

// notifyEstablished publishes a ConnectionEstablished event, if a notifier
// was configured.
func (c *conn) notifyEstablished(dialed bool) {
	if c.notifier == nil {
		return
	}
	_ = c.notifier.Publish(context.Background(), &eventbus.ConnectionEstablished{
		ConnectionID: c.id,
		Address:      c.address,
		Dialed:       dialed,
	})
}

// ID implements proxy.Connection / transport.Connection.
func (c *conn) ID() string { return c.id }

// SendInvocation implements transport.Connection.
func (c *conn) SendInvocation(ctx context.Context, event *wire.InvocationEvent) error {
	msg, err := encodeInvocation(c.codec, event)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendExecution implements transport.Connection.
func (c *conn) SendExecution(ctx context.Context, event *wire.ExecutionEvent) error {
	msg, err := encodeExecution(c.codec, event)
	if err != nil {
		return err
	}
	return c.send(msg)
}

func (c *conn) send(msg *wrapperspb.BytesValue) error {
	start := time.Now()
	c.sendMu.Lock()
	err := c.stream.SendMsg(msg)
	c.sendMu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordGRPCFrame("outbound", status, time.Since(start).Seconds())
	return err
}

// Close implements transport.Connection.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			err = c.closeFn()
		}
	})
	return err
}

// recvLoop reads frames off the stream until it errors or the peer closes,
// dispatching each to handler. Runs on its own goroutine; callers get it
// started by Serve/Dial and should not call it directly.
func (c *conn) recvLoop(handler transport.FrameHandler) error {
	for {
		start := time.Now()
		msg := &wrapperspb.BytesValue{}
		if err := c.stream.RecvMsg(msg); err != nil {
			observability.RecordGRPCFrame("inbound", "closed", time.Since(start).Seconds())
			return err
		}
		invEvent, execEvent, err := decodeFrame(c.codec, msg, c.invPool, c.execPool)
		if err != nil {
			observability.RecordGRPCFrame("inbound", "malformed", time.Since(start).Seconds())
			c.logger.Warn("grpctransport: dropping malformed frame", "connection", c.id, "error", err)
			continue
		}
		observability.RecordGRPCFrame("inbound", "ok", time.Since(start).Seconds())
		if invEvent != nil {
			c.notifyInvocationReceived(invEvent)
			handler.HandleInvocation(c, invEvent)
		}
		if execEvent != nil {
			c.notifyExecutionPosted(execEvent)
			handler.HandleExecution(c, execEvent)
		}
	}
}

func (c *conn) notifyInvocationReceived(event *wire.InvocationEvent) {
	if c.notifier == nil {
		return
	}
	_ = c.notifier.Publish(context.Background(), &eventbus.InvocationReceived{
		ConnectionID:   c.id,
		TransactionID:  event.TransactionID,
		TargetObjectID: event.TargetObjectID,
		MethodID:       event.MethodID,
	})
}

func (c *conn) notifyExecutionPosted(event *wire.ExecutionEvent) {
	if c.notifier == nil {
		return
	}
	_ = c.notifier.Publish(context.Background(), &eventbus.ExecutionPosted{
		ConnectionID:  c.id,
		TransactionID: event.TransactionID,
		Failed:        event.Err != nil,
	})
}

var _ transport.Connection = (*conn)(nil)
