package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var protectedMethod = &grpc.UnaryServerInfo{FullMethod: "/taskmanager.v1.Tasks/List"}

func mustNotRun(t *testing.T) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler must not be called")
		return nil, nil
	}
}

func withAuth(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", value))
}

func TestInterceptor_HealthNeedsNoToken(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), newTestCodec(t), nil, nil)

	called := false
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, h)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Rejects(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), newTestCodec(t), nil, nil)

	other, err := auth.NewCodec([]byte("other-secret"), 0)
	require.NoError(t, err)
	forged, err := other.Encode(auth.Claims{UserID: uuid.New(), Role: models.RoleUser}, 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"wrong scheme", withAuth("Basic abc")},
		{"empty bearer", withAuth("Bearer ")},
		{"garbage", withAuth("Bearer not.a.jwt")},
		{"foreign signature", withAuth("Bearer " + forged)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.accessTokenInterceptor(tt.ctx, nil, protectedMethod, mustNotRun(t))
			require.Error(t, err)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestInterceptor_BindsTenantScope(t *testing.T) {
	codec := newTestCodec(t)
	s := NewGRPCServer("", logging.Nop(), codec, nil, nil)

	userID := uuid.New()
	token, err := codec.Encode(auth.Claims{UserID: userID, Email: "a@example.com", Role: models.RoleUser}, 0)
	require.NoError(t, err)

	var got tenant.Scope
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got = tenant.FromContext(ctx)
		return nil, nil
	}

	_, err = s.accessTokenInterceptor(withAuth("Bearer "+token), nil, protectedMethod, h)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.Bound())
}
