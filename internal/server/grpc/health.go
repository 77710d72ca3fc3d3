package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/tideline/internal/runtime"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

// ServiceName is the health service key reported alongside the overall "" key.
const ServiceName = "tideline.Streams"

// healthSvc is the standard health service with statuses driven by the
// runtime health check. Check refreshes before answering; Watch subscribers
// are updated by the poll loop.
type healthSvc struct {
	*health.Server
	rt  *runtime.Runtime
	log logpkg.Logger
}

func newHealthSvc(rt *runtime.Runtime, logger logpkg.Logger) *healthSvc {
	return &healthSvc{Server: health.NewServer(), rt: rt, log: logger}
}

func (h *healthSvc) refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.rt.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.log.Warn("grpc.health_failed", logpkg.Err(err))
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(ServiceName, status)
	return status
}

func (h *healthSvc) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	h.refresh(ctx)
	return h.Server.Check(ctx, req)
}

// poll refreshes the status every interval until ctx is done.
func (h *healthSvc) poll(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.refresh(ctx)
		}
	}
}
