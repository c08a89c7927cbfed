package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type InstructionStatus string

const (
	StatusOK     InstructionStatus = "ok"
	StatusFailed InstructionStatus = "failed"
)

// InstructionRecord is one journaled instruction line.
type InstructionRecord struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	Code      string            `json:"code"`
	Line      string            `json:"line"`
	Response  string            `json:"response,omitempty"`
	Status    InstructionStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	CreatedAt time.Time         `json:"created_at"`
}

// Snapshot is a persisted serialized state, keyed by domain name.
type Snapshot struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Label     string          `json:"label,omitempty"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}
