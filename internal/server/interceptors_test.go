package server

import (
	"context"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var calls []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			calls = append(calls, name+" in")
			resp, err := handler(ctx, req)
			calls = append(calls, name+" out")
			return resp, err
		}
	}
	chain := ChainUnaryInterceptors(mark("outer"), mark("inner"))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Order"}

	resp, err := chain(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		calls = append(calls, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer in", "inner in", "handler", "inner out", "outer out"}, calls)
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("corrupted board")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	interceptor := LoggingInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Log"}
	want := status.Error(codes.NotFound, "no such token")

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, want
	})
	assert.Equal(t, want, err)
}

func TestMetricsInterceptorCountsByCode(t *testing.T) {
	interceptor := MetricsInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Metrics"}
	ok := rpcRequests.WithLabelValues(info.FullMethod, codes.OK.String())
	notFound := rpcRequests.WithLabelValues(info.FullMethod, codes.NotFound.String())
	okBefore, nfBefore := testutil.ToFloat64(ok), testutil.ToFloat64(notFound)

	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "done", nil
	})
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, toStatus(gameerr.NotFound("token", "Z"))
	})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, nfBefore+1, testutil.ToFloat64(notFound))
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dungeon_websocket_clients")
}
