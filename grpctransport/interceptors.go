package grpctransport

import (
	"context"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
)

// UnaryServerLoggingInterceptor logs the duration and result of every
// unary RPC once it completes. The Channel RPC itself is streaming, but a server also
// carrying administrative unary calls (health checks, reflection) still
// benefits from this.
func UnaryServerLoggingInterceptor(logger rlog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		if err != nil {
			st, _ := status.FromError(err)
			logger.Error("grpctransport: unary request failed",
				"method", info.FullMethod, "duration_ms", duration.Milliseconds(), "code", st.Code().String(), "error", err.Error())
		} else {
			logger.Debug("grpctransport: unary request completed",
				"method", info.FullMethod, "duration_ms", duration.Milliseconds())
		}
		return resp, err
	}
}

// StreamServerLoggingInterceptor logs the start, duration, and result of
// every streaming RPC, which is how every Channel connection is served.
func StreamServerLoggingInterceptor(logger rlog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		logger.Debug("grpctransport: stream started", "method", info.FullMethod)

		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpctransport: stream handler panicked",
					"method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Errorf(codes.Internal, "panic recovered: %v", r)
			}
		}()

		err = handler(srv, ss)
		duration := time.Since(start)

		if err != nil {
			st, _ := status.FromError(err)
			logger.Error("grpctransport: stream failed",
				"method", info.FullMethod, "duration_ms", duration.Milliseconds(), "code", st.Code().String(), "error", err.Error())
		} else {
			logger.Debug("grpctransport: stream completed",
				"method", info.FullMethod, "duration_ms", duration.Milliseconds())
		}
		return err
	}
}
