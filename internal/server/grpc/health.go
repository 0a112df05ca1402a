package grpc

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// watchHealth re-pings storage every interval until ctx is done.
func (s *GRPCServer) watchHealth(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.updateHealth(ctx)
		}
	}
}

// updateHealth sets the overall serving status from one storage ping.
func (s *GRPCServer) updateHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if err := s.pinger.PingContext(pingCtx); err != nil {
			s.logger.Warn(ctx, "storage ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}
