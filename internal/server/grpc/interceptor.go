package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// accessTokenInterceptor requires "authorization: Bearer <token>" metadata
// on every method except the health service, and binds the caller's tenant
// scope into the handler context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			scheme, token, found := strings.Cut(values[0], " ")
			if found && strings.EqualFold(scheme, "Bearer") {
				accessToken = strings.TrimSpace(token)
			}
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = tenant.WithScope(ctx, tenant.ForUser(claims.UserID))
	ctx = logging.WithContext(ctx, s.logger.With("user_id", claims.UserID, "method", info.FullMethod))

	return handler(ctx, req)
}
