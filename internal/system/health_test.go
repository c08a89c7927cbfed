package system

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func check(t *testing.T, h *HealthReporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServingStatus(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(machine.StatusReady))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(machine.StatusBusy))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(machine.StatusError))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(machine.StatusDisconnected))
}

func TestHealthReporterSet(t *testing.T) {
	h := NewHealthReporter(nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, MachineService))

	h.Set(machine.StatusReady)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, MachineService))

	h.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ""))
}

func TestHealthReporterWatch(t *testing.T) {
	h := NewHealthReporter(zap.NewNop())
	streamer := events.NewStreamer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Watch(ctx, streamer, func() machine.Status { return machine.StatusReady })
	}()

	require.Eventually(t, func() bool {
		return check(t, h, MachineService) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	streamer.Publish(events.StatusChanged, map[string]any{"status": string(machine.StatusError)})
	require.Eventually(t, func() bool {
		return check(t, h, MachineService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Zero(t, streamer.SubscriberCount())
}
