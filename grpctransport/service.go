package grpctransport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const (
	serviceName  = "rmicore.Channel"
	channelsRPC  = "Channel"
	channelsPath = "/" + serviceName + "/" + channelsRPC
)

// channelServer is implemented by the object registered against the
// hand-authored ServiceDesc below; Transport.Serve registers one per call.
type channelServer interface {
	serveChannel(stream grpc.ServerStream) error
}

// serviceDesc is authored by hand rather than generated by protoc: the
// service has exactly one bidirectional-streaming method whose messages
// are already self-describing tagged frames (see frame.go), so there is
// no request/response schema worth compiling a .proto file for.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*channelServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    channelsRPC,
			Handler:       channelHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "rmicore/channel.proto",
}

func channelHandler(srv any, stream grpc.ServerStream) error {
	s, ok := srv.(channelServer)
	if !ok {
		return fmt.Errorf("grpctransport: handler registered with wrong type %T", srv)
	}
	return s.serveChannel(stream)
}

// registerChannelServer is the hand-rolled equivalent of the
// RegisterXServer function protoc-gen-go-grpc would generate.
func registerChannelServer(s grpc.ServiceRegistrar, srv channelServer) {
	s.RegisterService(&serviceDesc, srv)
}

// newChannelClientStream opens the client side of the Channel RPC, the
// hand-rolled equivalent of a generated client's streaming method.
func newChannelClientStream(ctx context.Context, cc grpc.ClientConnInterface) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{
		StreamName:    channelsRPC,
		ServerStreams: true,
		ClientStreams: true,
	}
	return cc.NewStream(ctx, desc, channelsPath)
}
