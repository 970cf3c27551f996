package api

import (
	"context"
	"time"

	"barberbook/internal/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

// ChainUnaryInterceptors composes interceptors, outermost first.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq any) (any, error) {
				return interceptor(currentCtx, currentReq, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// LoggingUnaryInterceptor logs every call with a request id and puts a
// request-scoped logger into the context.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := first(metadataValues(ctx, requestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, reqID))

		l := logger.With().
			Str("request_id", reqID).
			Str("method", info.FullMethod).
			Logger()
		ctx = l.WithContext(ctx)

		resp, err := handler(ctx, req)

		ev := l.Info()
		if err != nil {
			ev = l.Warn().Err(err)
		}
		ev.Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}

func requestLogger(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	return logging.FromContext(ctx, fallback)
}
