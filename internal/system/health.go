package system

import (
	"context"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// MachineService is the health service name that follows the controller
// status. The empty service name reports the process itself.
const MachineService = "ogc.Machine"

func servingStatus(s machine.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case machine.StatusReady, machine.StatusBusy:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// HealthReporter publishes the controller status through the gRPC health
// protocol.
type HealthReporter struct {
	server *health.Server
	logger *zap.Logger
}

func NewHealthReporter(logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(MachineService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{server: hs, logger: logger}
}

// Register adds the health service to a gRPC server.
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

func (h *HealthReporter) Set(status machine.Status) {
	h.server.SetServingStatus(MachineService, servingStatus(status))
}

// Watch follows status.changed events until ctx is done. current is read
// once after subscribing.
func (h *HealthReporter) Watch(ctx context.Context, streamer *events.Streamer, current func() machine.Status) {
	ch := streamer.Subscribe(events.StatusChanged)
	defer streamer.Unsubscribe(ch)

	h.Set(current())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			status, _ := ev.Payload["status"].(string)
			h.Set(machine.Status(status))
			h.logger.Debug("Health status updated",
				zap.String("service", MachineService),
				zap.String("status", status))
		}
	}
}

// Shutdown marks every service as not serving.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
