package grpctransport

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
)

// Dial implements transport.Transport: it opens the Channel RPC to
// address and starts reading frames into handler on a background
// goroutine, returning the Connection as soon as the stream is open.
func (t *Transport) Dial(ctx context.Context, address string, handler transport.FrameHandler) (transport.Connection, error) {
	cc, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: dial %s: %w", address, err)
	}

	stream, err := newChannelClientStream(ctx, cc)
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("grpctransport: open channel: %w", err)
	}

	c := newConn(stream, t.codec, t.invPool, t.execPool, t.logger, t.notifier, cc.Close)
	c.address = address
	t.trackConn(c)
	c.notifyEstablished(true)
	go func() {
		defer t.untrackConn(c)
		if err := c.recvLoop(handler); err != nil {
			t.logger.Info("grpctransport: dialed connection closed", "connection", c.ID(), "error", err)
		}
	}()
	return c, nil
}
