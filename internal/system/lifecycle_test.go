package system

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/config"
	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// okDevice accepts connections and acknowledges every line.
func okDevice(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					if _, err := r.ReadString('\n'); err != nil {
						return
					}
					if _, err := conn.Write([]byte("ok\n")); err != nil {
						return
					}
				}
			}()
		}
	}()
	return lis.Addr().String()
}

func testConfig(t *testing.T, address string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bench
components:
  "axis:X": {}
functions:
  park:
    operations:
      home:
        - component: "axis:X"
          action: home
`), 0o644))

	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: 5 * time.Second},
		Transport: config.TransportConfig{
			Address:         address,
			DialTimeout:     time.Second,
			ResponseTimeout: time.Second,
		},
		Machine: config.MachineConfig{Definition: path, SearchPaths: []string{dir}},
	}
}

func TestLifecycleStartReloadShutdown(t *testing.T) {
	cfg := testConfig(t, okDevice(t))
	lm, err := NewLifecycleManager(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, lm.Start(context.Background()))

	status := lm.GetCurrentStatus()
	assert.Equal(t, "RUNNING", status.State)
	assert.Equal(t, machine.StatusReady, status.Machine.Status)
	assert.Equal(t, "bench", status.Machine.Machine)
	assert.False(t, status.JournalEnabled)
	assert.False(t, status.MonitorRunning)

	_, err = lm.MachineController().Execute(context.Background(), "G0", []instruction.Param{instruction.P("X", 10)}, "")
	require.NoError(t, err)

	port := lm.GRPCAddr().(*net.TCPAddr).Port
	conn, err := grpc.NewClient(fmt.Sprintf("127.0.0.1:%d", port),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: MachineService})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, lm.Reload(context.Background()))
	assert.Equal(t, "RUNNING", lm.GetCurrentStatus().State)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	require.NoError(t, lm.Shutdown(ctx))
	assert.Equal(t, "STOPPED", lm.GetCurrentStatus().State)
	assert.Equal(t, machine.StatusDisconnected, lm.GetCurrentStatus().Machine.Status)

	// Zweiter Aufruf ist ein No-op
	assert.NoError(t, lm.Shutdown(ctx))
}

func TestLifecycleReloadKeepsDefinitionOnError(t *testing.T) {
	cfg := testConfig(t, okDevice(t))
	lm, err := NewLifecycleManager(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, lm.Start(context.Background()))
	t.Cleanup(func() { lm.Shutdown(context.Background()) })

	require.NoError(t, os.WriteFile(cfg.Machine.Definition, []byte("name: [broken"), 0o644))
	assert.Error(t, lm.Reload(context.Background()))

	status := lm.GetCurrentStatus()
	assert.Equal(t, "RUNNING", status.State)
	assert.Equal(t, "bench", status.Machine.Machine)
	_, err = lm.MachineController().Functions().Get("park")
	assert.NoError(t, err)
}

func TestLifecycleStartsWithoutDevice(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := lis.Addr().String()
	lis.Close()

	cfg := testConfig(t, address)
	lm, err := NewLifecycleManager(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, lm.Start(context.Background()))
	t.Cleanup(func() { lm.Shutdown(context.Background()) })

	status := lm.GetCurrentStatus()
	assert.Equal(t, "RUNNING", status.State)
	assert.Equal(t, machine.StatusError, status.Machine.Status)
}

func TestLifecycleRejectsInvalidDefinition(t *testing.T) {
	cfg := testConfig(t, okDevice(t))
	cfg.Machine.Definition = filepath.Join(t.TempDir(), "missing.yaml")

	lm, err := NewLifecycleManager(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, lm.Start(context.Background()))
	assert.Equal(t, "ERROR", lm.GetCurrentStatus().State)
	assert.NoError(t, lm.Shutdown(context.Background()))
}
