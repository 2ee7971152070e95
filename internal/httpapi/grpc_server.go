package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"mamacare.app/internal/obs"
)

const readinessTimeout = 2 * time.Second

// HealthServer serves grpc.health.v1 with the status of the readiness check.
// Both the empty service name and serviceName are kept in sync.
type HealthServer struct {
	health *health.Server
	ready  ReadyChecker
	logger *zap.Logger
}

// NewHealthServer starts in NOT_SERVING until the first Refresh.
func NewHealthServer(ready ReadyChecker, logger *zap.Logger) *HealthServer {
	if ready == nil {
		ready = ReadyFunc(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := &HealthServer{health: health.NewServer(), ready: ready, logger: logger}
	hs.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Refresh runs the readiness check once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := h.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	obs.SetReady(true)
	h.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Run refreshes every interval until ctx ends, then marks the service as
// shutting down so clients drain before the listener closes.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	if err := h.Refresh(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			if err := h.Refresh(ctx); err != nil && ctx.Err() == nil {
				h.logger.Warn("readiness check failed", zap.Error(err))
			}
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(serviceName, status)
}
