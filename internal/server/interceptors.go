package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/doc-intake/internal/metrics"
)

// UnaryInterceptor recovers panics, then logs and counts every unary call.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
			code := status.Code(err)
			elapsed := time.Since(start)
			metrics.GRPCRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
			metrics.GRPCRequestDuration.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())

			level := slog.LevelInfo
			if code == codes.Internal || code == codes.Unknown {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "grpc.request", "method", info.FullMethod, "code", code.String(), "elapsed_ms", elapsed.Milliseconds())
		}()
		return handler(ctx, req)
	}
}
