package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCHealthServer exposes readiness over the standard gRPC health
// protocol, mirroring /readyz for infrastructure that probes gRPC. The
// returned stop function halts the background probe loop.
func NewGRPCHealthServer(probe func(context.Context) error, interval time.Duration) (*grpc.Server, func()) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	srv := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(srv, h)

	setStatus := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err := probe(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.SetServingStatus("", status)
		h.SetServingStatus(serviceName, status)
	}
	setStatus()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				setStatus()
			case <-done:
				return
			}
		}
	}()

	return srv, func() { close(done) }
}
