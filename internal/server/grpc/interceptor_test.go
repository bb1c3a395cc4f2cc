package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	pb "github.com/dmitrijs2005/finkeeper/internal/proto"
	"github.com/dmitrijs2005/finkeeper/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("", logging.NewNop(), newRecords(), secret)
}

func deviceHandler(called *bool) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		*called = true
		return auth.DeviceIDFromContext(ctx), nil
	}
}

func TestInterceptor_PingNeedsNoToken(t *testing.T) {
	s := newTestServer("secret")
	called := false

	_, err := s.accessTokenInterceptor(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: pb.SyncService_Ping_FullMethodName}, deviceHandler(&called))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	called := false

	_, err := s.accessTokenInterceptor(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: pb.SyncService_Pull_FullMethodName}, deviceHandler(&called))
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
	assert.False(t, called)
}

func TestInterceptor_InvalidAndExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.SyncService_Push_FullMethodName}

	expired, err := auth.GenerateToken("d1", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{name: "garbage", token: "not-a-valid-jwt", message: common.ErrInvalidToken.Error()},
		{name: "expired", token: expired, message: common.ErrTokenExpired.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(),
				metadata.Pairs(common.AccessTokenHeaderName, tt.token))
			called := false
			_, err := s.accessTokenInterceptor(ctx, nil, info, deviceHandler(&called))
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.Equal(t, tt.message, status.Convert(err).Message())
			assert.False(t, called)
		})
	}
}

func TestInterceptor_ValidTokenSetsDevice(t *testing.T) {
	s := newTestServer("secret")
	tok, err := auth.GenerateToken("device-7", []byte("secret"), time.Hour)
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, tok))
	called := false
	resp, err := s.accessTokenInterceptor(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: pb.SyncService_Push_FullMethodName}, deviceHandler(&called))
	require.NoError(t, err)
	assert.Equal(t, "device-7", resp)
}

func TestInterceptor_AuthDisabledUsesDeviceHeader(t *testing.T) {
	s := newTestServer("")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.DeviceIDHeaderName, "dev-x"))
	called := false

	resp, err := s.accessTokenInterceptor(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: pb.SyncService_Pull_FullMethodName}, deviceHandler(&called))
	require.NoError(t, err)
	assert.Equal(t, "dev-x", resp)
}
