package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string                `json:"state"`
	Machine          machine.MachineStatus `json:"machine"`
	Definition       string                `json:"definition,omitempty"`
	MonitorRunning   bool                  `json:"monitor_running"`
	JournalEnabled   bool                  `json:"journal_enabled"`
	WebSocketClients int                   `json:"websocket_clients"`
	DroppedEvents    uint64                `json:"dropped_events"`
}

// LifecycleManager is what the API layer needs from the running system.
type LifecycleManager interface {
	MachineController() *machine.Controller
	GetCurrentStatus() SystemStatus
	Reload(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
