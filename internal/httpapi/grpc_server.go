package httpapi

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

// HealthServer serves grpc.health.v1 with a status that follows the
// readiness probe.
type HealthServer struct {
	srv   *health.Server
	probe ReadyProbe
}

// NewHealthServer starts out NOT_SERVING until the first Sync.
func NewHealthServer(probe ReadyProbe) *HealthServer {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{srv: srv, probe: probe}
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Sync runs the readiness probe and publishes the result.
func (h *HealthServer) Sync(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	err := h.probe.Check(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.WithContext(ctx).Warn("readiness probe failed", zap.Error(err))
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
	obs.SetReady(err == nil)
	return err == nil
}

// Shutdown marks every service NOT_SERVING so clients drain.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}
