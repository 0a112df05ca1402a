// Package grpc is the gRPC surface of the server: the standard health
// service, driven by a storage ping, and the tenant-scoped Tasks service
// behind an access token interceptor.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultHealthInterval = 10 * time.Second

// Pinger reports storage health. A nil Pinger is always healthy.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type GRPCServer struct {
	address  string
	logger   logging.Logger
	codec    *auth.Codec
	pinger   Pinger
	tasks    TaskManager
	health   *health.Server
	interval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, codec *auth.Codec, pinger Pinger, tasks TaskManager) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		codec:    codec,
		pinger:   pinger,
		tasks:    tasks,
		health:   health.NewServer(),
		interval: defaultHealthInterval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&tasksServiceDesc, s)

	s.updateHealth(ctx)
	go s.watchHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
