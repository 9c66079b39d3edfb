package grpctransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// recordingHandler captures every frame it is handed, for assertion.
type recordingHandler struct {
	invocations chan *wire.InvocationEvent
	executions  chan *wire.ExecutionEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		invocations: make(chan *wire.InvocationEvent, 8),
		executions:  make(chan *wire.ExecutionEvent, 8),
	}
}

func (h *recordingHandler) HandleInvocation(conn transport.Connection, event *wire.InvocationEvent) {
	h.invocations <- event
}

func (h *recordingHandler) HandleExecution(conn transport.Connection, event *wire.ExecutionEvent) {
	h.executions <- event
}

func waitForAddr(t *testing.T, srv *Transport) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != "" {
			return addr
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for server to bind")
	return ""
}

func TestInvocationFrameRoundTripsOverGRPC(t *testing.T) {
	serverHandler := newRecordingHandler()
	srv := New(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, "127.0.0.1:0", serverHandler) }()
	t.Cleanup(func() { srv.Close() })

	addr := waitForAddr(t, srv)

	clientHandler := newRecordingHandler()
	cli := New(nil, nil)
	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, err := cli.Dial(dialCtx, addr, clientHandler)
	require.NoError(t, err)
	defer conn.Close()

	pool := wire.NewInvocationPool()
	event := pool.Get()
	event.TransactionID = 1
	event.TargetObjectID = 42
	event.MethodID = 3
	event.Params = []any{"hello"}

	require.NoError(t, conn.SendInvocation(context.Background(), event))

	select {
	case got := <-serverHandler.invocations:
		assert.Equal(t, int64(1), got.TransactionID)
		assert.Equal(t, int64(42), got.TargetObjectID)
		assert.Equal(t, int32(3), got.MethodID)
		assert.Equal(t, []any{"hello"}, got.Params)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the invocation frame")
	}
}

func TestExecutionFrameRoundTripsOverGRPC(t *testing.T) {
	serverHandler := newRecordingHandler()
	srv := New(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, "127.0.0.1:0", serverHandler)
	t.Cleanup(func() { srv.Close() })

	addr := waitForAddr(t, srv)

	clientHandler := newRecordingHandler()
	cli := New(nil, nil)
	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, err := cli.Dial(dialCtx, addr, clientHandler)
	require.NoError(t, err)
	defer conn.Close()

	// serveChannel never sends frames of its own, so this test sends the
	// execution frame from the dialed client conn and checks that the
	// server's handler receives it intact.
	pool := wire.NewExecutionPool()
	event := pool.Get()
	event.TransactionID = 7
	event.Result = "done"

	require.NoError(t, conn.SendExecution(context.Background(), event))

	select {
	case got := <-serverHandler.executions:
		assert.Equal(t, int64(7), got.TransactionID)
		assert.Equal(t, "done", got.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the execution frame")
	}
}
