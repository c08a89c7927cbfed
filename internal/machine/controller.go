package machine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/function"
	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/storage"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Journal persists executed instructions and state snapshots.
type Journal interface {
	RecordInstruction(ctx context.Context, rec storage.InstructionRecord) error
	ListInstructions(ctx context.Context, sessionID uuid.UUID, limit int) ([]storage.InstructionRecord, error)
	SaveSnapshot(ctx context.Context, sessionID uuid.UUID, label string, state json.RawMessage) (uuid.UUID, error)
	LoadSnapshot(ctx context.Context, id uuid.UUID) (*storage.Snapshot, error)
}

type connector interface {
	Connect(ctx context.Context) error
}

type closer interface {
	Close() error
}

// Controller owns the device session: transport, state, instruction set,
// components and composite functions.
type Controller struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	streamer *events.Streamer

	transport    instruction.Transport
	executor     *instruction.Executor
	instructions *instruction.Registry
	state        *state.Manager

	// execMu serializes instruction execution and every state access.
	execMu sync.Mutex
	depth  atomic.Int64

	mu           sync.RWMutex
	definition   *Definition
	components   *component.Registry
	functions    *function.Registry
	journal      Journal
	status       Status
	previous     Status
	errorMessage string
	lastChange   time.Time
	busy         int
	executed     uint64
}

func NewController(
	logger *zap.Logger,
	transport instruction.Transport,
	m *metrics.Metrics,
	streamer *events.Streamer,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	st := state.NewManager(logger)
	components := component.NewRegistry()

	return &Controller{
		logger:       logger,
		metrics:      m,
		streamer:     streamer,
		transport:    transport,
		executor:     instruction.NewExecutor(transport, st, logger, m, streamer),
		instructions: instruction.NewBuiltinRegistry(),
		state:        st,
		components:   components,
		functions:    function.NewRegistry(components, logger, m, streamer),
		status:       StatusDisconnected,
		lastChange:   time.Now(),
	}
}

// SetJournal enables persistence of executed instructions.
func (c *Controller) SetJournal(j Journal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = j
}

func (c *Controller) Instructions() *instruction.Registry { return c.instructions }
func (c *Controller) Streamer() *events.Streamer          { return c.streamer }
func (c *Controller) SessionID() uuid.UUID                { return c.state.SessionID() }

func (c *Controller) Components() *component.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.components
}

func (c *Controller) Functions() *function.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.functions
}

func (c *Controller) Definition() *Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definition
}

// Load builds the components and functions of def and validates them. All
// problems are collected and returned as one configuration error; on error
// the previously loaded definition stays active.
func (c *Controller) Load(def *Definition) error {
	components := component.NewRegistry()
	functions := function.NewRegistry(components, c.logger, c.metrics, c.streamer)

	var errs error
	for _, id := range def.ComponentIDs() {
		if _, err := components.Build(id, def.Components[id], c); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, name := range def.FunctionNames() {
		if _, err := functions.Define(name, def.Functions[name]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	reports := functions.Reports()
	for _, name := range functions.Names() {
		errs = multierr.Append(errs, reports[name].Err())
	}

	if errs != nil {
		c.logger.Error("Machine definition rejected",
			zap.String("machine", def.Name),
			zap.Int("problems", len(multierr.Errors(errs))),
			zap.Error(errs))
		return types.Wrap(types.KindConfiguration, "load machine "+def.Name, errs)
	}

	c.mu.Lock()
	c.definition = def
	c.components = components
	c.functions = functions
	c.mu.Unlock()

	c.logger.Info("Machine definition loaded",
		zap.String("machine", def.Name),
		zap.Int("components", components.Len()),
		zap.Int("functions", functions.Len()))
	return nil
}

// Connect opens the transport when it needs opening and marks the
// controller ready.
func (c *Controller) Connect(ctx context.Context) error {
	if conn, ok := c.transport.(connector); ok {
		if err := conn.Connect(ctx); err != nil {
			c.setStatus(StatusError, err.Error())
			return err
		}
	}
	c.setStatus(StatusReady, "")
	return nil
}

func (c *Controller) Close() error {
	c.setStatus(StatusDisconnected, "")
	if cl, ok := c.transport.(closer); ok {
		return cl.Close()
	}
	return nil
}

// Execute builds an instruction by code, validates it against the current
// state, sends it and applies its effect. The state is only changed after
// the device accepted the instruction.
func (c *Controller) Execute(ctx context.Context, code string, params []instruction.Param, comment string) (*instruction.Result, error) {
	instr, err := c.instructions.New(code, params, comment)
	if err != nil {
		return nil, err
	}

	c.execMu.Lock()
	defer c.execMu.Unlock()

	if err := c.state.Validate(instr); err != nil {
		return nil, err
	}

	c.enter()
	res, err := c.executor.Execute(ctx, instr)
	c.record(ctx, instr, res, err)
	if err != nil {
		c.leave(err)
		return nil, err
	}

	if err := c.state.Apply(instr); err != nil {
		c.leave(nil)
		return res, err
	}
	c.syncDepth()
	c.streamer.Publish(events.StateChanged, map[string]any{
		"code": instr.Code(),
		"line": res.Line,
	})
	c.leave(nil)
	return res, nil
}

// ExecuteLine parses a text line and executes it.
func (c *Controller) ExecuteLine(ctx context.Context, line string) (*instruction.Result, error) {
	code, params, comment, err := instruction.ParseLine(line)
	if err != nil {
		return nil, types.Wrap(types.KindParameter, "parse line", err)
	}
	return c.Execute(ctx, code, params, comment)
}

// Invoke runs one action of a component.
func (c *Controller) Invoke(ctx context.Context, componentID, action string, value any) (*component.Result, error) {
	comp, err := c.Components().Get(componentID)
	if err != nil {
		return nil, err
	}
	return comp.Invoke(ctx, action, value)
}

// Call runs an operation of a composite function.
func (c *Controller) Call(ctx context.Context, name, op string, args ...any) ([]*component.Result, error) {
	f, err := c.Functions().Get(name)
	if err != nil {
		return nil, err
	}
	return f.Invoke(ctx, op, args...)
}

// Send writes a raw line without acknowledgement or state tracking.
func (c *Controller) Send(ctx context.Context, line string) error {
	return c.transport.SendLine(ctx, line)
}

// Query writes a raw line and returns the device response.
func (c *Controller) Query(ctx context.Context, line string) (string, error) {
	return c.transport.Query(ctx, line)
}

// WithState runs fn with exclusive access to the state manager. fn must not
// execute instructions.
func (c *Controller) WithState(fn func(st *state.Manager) error) error {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	err := fn(c.state)
	c.syncDepth()
	return err
}

// Positioning reports the tracked G90/G91 mode.
func (c *Controller) Positioning() state.PositioningMode {
	return c.Snapshot().Motion.Positioning
}

func (c *Controller) Snapshot() state.Snapshot {
	c.execMu.Lock()
	defer c.execMu.Unlock()
	return c.state.Snapshot()
}

// SaveSnapshot persists the serialized state through the journal.
func (c *Controller) SaveSnapshot(ctx context.Context, label string) (uuid.UUID, error) {
	journal, err := c.requireJournal("save snapshot")
	if err != nil {
		return uuid.Nil, err
	}

	var serialized []byte
	err = c.WithState(func(st *state.Manager) error {
		var err error
		serialized, err = st.Serialize()
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return journal.SaveSnapshot(ctx, c.state.SessionID(), label, serialized)
}

// RestoreSnapshot replaces the current state with a persisted snapshot. The
// stack depth is kept.
func (c *Controller) RestoreSnapshot(ctx context.Context, id uuid.UUID) (*storage.Snapshot, error) {
	journal, err := c.requireJournal("restore snapshot")
	if err != nil {
		return nil, err
	}
	snap, err := journal.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	err = c.WithState(func(st *state.Manager) error {
		return st.Restore(snap.State)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot %s: %w", id, err)
	}
	c.logger.Info("State restored from snapshot",
		zap.String("snapshot_id", id.String()),
		zap.String("label", snap.Label))
	return snap, nil
}

// History returns the journaled instructions of the current session.
func (c *Controller) History(ctx context.Context, limit int) ([]storage.InstructionRecord, error) {
	journal, err := c.requireJournal("history")
	if err != nil {
		return nil, err
	}
	return journal.ListInstructions(ctx, c.state.SessionID(), limit)
}

func (c *Controller) requireJournal(op string) (Journal, error) {
	c.mu.RLock()
	journal := c.journal
	c.mu.RUnlock()
	if journal == nil {
		return nil, types.Errorf(types.KindUnsupportedOperation, op, "no journal configured")
	}
	return journal, nil
}

// Reset clears the state and the error status.
func (c *Controller) Reset() {
	c.execMu.Lock()
	c.state.Reset()
	c.syncDepth()
	c.execMu.Unlock()

	c.mu.RLock()
	status := c.status
	c.mu.RUnlock()
	if status == StatusError {
		c.setStatus(StatusReady, "")
	}
}

func (c *Controller) GetStatus() MachineStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := MachineStatus{
		Status:           c.status,
		PreviousStatus:   c.previous,
		SessionID:        c.state.SessionID().String(),
		ErrorMessage:     c.errorMessage,
		Instructions:     c.executed,
		StateDepth:       int(c.depth.Load()),
		LastStatusChange: c.lastChange,
	}
	if c.definition != nil {
		out.Machine = c.definition.Name
	}
	return out
}

// syncDepth publishes the stack depth. Callers hold execMu.
func (c *Controller) syncDepth() {
	d := c.state.Depth()
	c.depth.Store(int64(d))
	c.metrics.SetStateDepth(d)
}

func (c *Controller) enter() {
	c.mu.Lock()
	c.busy++
	c.mu.Unlock()
	c.setStatus(StatusBusy, "")
}

// leave ends one execution. Device and transport failures put the
// controller into error; a rejected response or a cancelled call does not.
func (c *Controller) leave(err error) {
	c.mu.Lock()
	c.busy--
	c.executed++
	idle := c.busy == 0
	current := c.status
	c.mu.Unlock()

	switch {
	case err != nil && !errors.Is(err, types.ErrResponseValidation) && !errors.Is(err, context.Canceled):
		c.setStatus(StatusError, err.Error())
	case idle && (current == StatusBusy || (err == nil && current == StatusError)):
		c.setStatus(StatusReady, "")
	}
}

// setStatus moves to next when the transition is allowed.
func (c *Controller) setStatus(next Status, errorMsg string) bool {
	c.mu.Lock()
	previous := c.status
	if previous == next {
		c.mu.Unlock()
		return true
	}
	if !previous.CanTransition(next) {
		c.mu.Unlock()
		c.logger.Debug("Status transition ignored",
			zap.String("from", string(previous)),
			zap.String("to", string(next)))
		return false
	}
	c.previous = previous
	c.status = next
	c.errorMessage = errorMsg
	c.lastChange = time.Now()
	c.mu.Unlock()

	c.logger.Info("Machine status changed",
		zap.String("status", string(next)),
		zap.String("previous", string(previous)),
		zap.String("error", errorMsg))

	c.streamer.Publish(events.StatusChanged, map[string]any{
		"status":   string(next),
		"previous": string(previous),
		"error":    errorMsg,
	})
	return true
}

func (c *Controller) record(ctx context.Context, instr instruction.Instruction, res *instruction.Result, err error) {
	c.mu.RLock()
	journal := c.journal
	c.mu.RUnlock()
	if journal == nil {
		return
	}

	rec := storage.InstructionRecord{
		SessionID: c.state.SessionID(),
		Code:      instr.Code(),
		Line:      instruction.Encode(instr),
		Status:    storage.StatusOK,
	}
	if res != nil {
		rec.Response = res.Response
		rec.Duration = res.Duration
	}
	if err != nil {
		rec.Status = storage.StatusFailed
		rec.Error = err.Error()
	}
	if jerr := journal.RecordInstruction(ctx, rec); jerr != nil {
		c.logger.Warn("Failed to journal instruction",
			zap.String("line", rec.Line),
			zap.Error(jerr))
	}
}
