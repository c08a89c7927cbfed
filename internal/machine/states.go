package machine

import "time"

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusReady        Status = "ready"
	StatusBusy         Status = "busy"
	StatusError        Status = "error"
)

var transitions = map[Status][]Status{
	StatusDisconnected: {StatusReady, StatusError},
	StatusReady:        {StatusBusy, StatusError, StatusDisconnected},
	StatusBusy:         {StatusReady, StatusError, StatusDisconnected},
	StatusError:        {StatusReady, StatusDisconnected},
}

// CanTransition reports whether the controller may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type MachineStatus struct {
	Status           Status    `json:"status"`
	PreviousStatus   Status    `json:"previous_status,omitempty"`
	Machine          string    `json:"machine,omitempty"`
	SessionID        string    `json:"session_id"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Instructions     uint64    `json:"instructions"`
	StateDepth       int       `json:"state_depth"`
	LastStatusChange time.Time `json:"last_status_change"`
}
