package state

import (
	"encoding/json"
	"fmt"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the five state domains of one session plus a stack of full
// snapshots. It is not safe for concurrent use; hold one Manager per session.
type Manager struct {
	id     uuid.UUID
	logger *zap.Logger

	current Snapshot
	stack   []Snapshot
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &Manager{
		id:      id,
		logger:  logger.With(zap.String("session", id.String())),
		current: NewSnapshot(),
	}
}

// SessionID identifies the session this manager belongs to.
func (m *Manager) SessionID() uuid.UUID {
	return m.id
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	return m.current.Clone()
}

// Domains returns the live domains in validation order.
func (m *Manager) Domains() []Domain {
	return m.current.domains()
}

// Domain returns a live domain by name.
func (m *Manager) Domain(name string) (Domain, error) {
	for _, d := range m.current.domains() {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, types.Errorf(types.KindLookup, "state", "unknown state domain %q", name)
}

// Validate defers to the instruction's own validator when it has one,
// otherwise every domain must accept the instruction.
func (m *Manager) Validate(instr Instruction) error {
	if v, ok := instr.(Validator); ok {
		return v.ValidateState(m.current.Clone())
	}
	for _, d := range m.current.domains() {
		if err := d.Validate(instr); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs the instruction's state hook against a working copy and commits
// it on success. Instructions without a hook leave state untouched.
func (m *Manager) Apply(instr Instruction) error {
	a, ok := instr.(Applier)
	if !ok {
		return nil
	}
	working := m.current.Clone()
	if err := a.ApplyState(&working); err != nil {
		return fmt.Errorf("failed to apply %s: %w", codeOf(instr), err)
	}
	m.current = working
	return nil
}

// Push saves a deep copy of every domain and returns it.
func (m *Manager) Push() Snapshot {
	snap := m.current.Clone()
	m.stack = append(m.stack, snap)
	m.logger.Debug("State pushed", zap.Int("depth", len(m.stack)))
	return snap.Clone()
}

// Pop restores the most recently pushed snapshot and returns it.
func (m *Manager) Pop() (Snapshot, error) {
	if len(m.stack) == 0 {
		return Snapshot{}, types.Errorf(types.KindStateStack, "pop", "state stack is empty")
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.current = top.Clone()
	m.logger.Debug("State popped", zap.Int("depth", len(m.stack)))
	return top, nil
}

// Depth is the number of saved snapshots.
func (m *Manager) Depth() int {
	return len(m.stack)
}

// Reset returns every domain to its defaults and empties the stack.
func (m *Manager) Reset() {
	for _, d := range m.current.domains() {
		d.Reset()
	}
	m.stack = nil
	m.logger.Info("State reset")
}

// Serialize encodes every domain keyed by domain name.
func (m *Manager) Serialize() ([]byte, error) {
	out := make(map[string]json.RawMessage, 5)
	for _, d := range m.current.domains() {
		data, err := d.Serialize()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", d.Name(), err)
		}
		out[d.Name()] = data
	}
	return json.Marshal(out)
}

// Restore replaces the domains present in data. The stack is not touched.
func (m *Manager) Restore(data []byte) error {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	next := m.current.Clone()
	for name, raw := range in {
		d, err := next.domain(name)
		if err != nil {
			return err
		}
		if err := d.Deserialize(raw); err != nil {
			return fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	m.current = next
	return nil
}

func (s *Snapshot) domain(name string) (Domain, error) {
	for _, d := range s.domains() {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, types.Errorf(types.KindLookup, "state", "unknown state domain %q", name)
}
