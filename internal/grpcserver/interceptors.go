package grpcserver

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"animeranker/internal/auth"
	"animeranker/pkg/logging"
	"animeranker/pkg/models"
)

type userKey struct{}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the caller set by IdentityInterceptor, or the
// pseudo-user.
func UserFromContext(ctx context.Context) string {
	if id, _ := ctx.Value(userKey{}).(string); id != "" {
		return id
	}
	return models.DefaultUserID
}

// IdentityInterceptor mirrors the HTTP identity middleware: no
// authorization metadata means the pseudo-user, a bad bearer token is
// rejected.
func IdentityInterceptor(tokens auth.TokenService) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return handler(WithUser(ctx, models.DefaultUserID), req)
		}

		h := strings.TrimSpace(values[0])
		if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "bearer ") {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization metadata")
		}
		claims, err := tokens.Parse(strings.TrimSpace(h[len("Bearer "):]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(WithUser(ctx, claims.UserID), req)
	}
}

func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := logging.Info()
		if code != codes.OK {
			ev = logging.Warn()
			if code == codes.Internal {
				ev = logging.Error()
			}
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("[grpc] request")
		return resp, err
	}
}

// NewGRPCServer builds a server with logging and identity interceptors and
// the ranker service registered.
func NewGRPCServer(svc RankerServiceServer, tokens auth.TokenService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(LoggingInterceptor(), IdentityInterceptor(tokens)),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterRankerServiceServer(s, svc)
	return s
}
