package instruction

import (
	"context"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"go.uber.org/zap"
)

// Transport writes protocol lines to the device.
type Transport interface {
	SendLine(ctx context.Context, line string) error
	Query(ctx context.Context, line string) (string, error)
}

// NetworkInfoUpdater is implemented by transports that want extracted
// network facts.
type NetworkInfoUpdater interface {
	UpdateNetworkInfo(ip, state string)
}

// FactSink receives facts extracted from responses.
type FactSink interface {
	RecordFacts(f state.Facts) error
}

// Result describes one executed instruction.
type Result struct {
	Line     string        `json:"line"`
	Response string        `json:"response,omitempty"`
	Facts    state.Facts   `json:"-"`
	Duration time.Duration `json:"duration"`
}

type Executor struct {
	transport Transport
	sink      FactSink
	logger    *zap.Logger
	metrics   *metrics.Metrics
	streamer  *events.Streamer
}

// NewExecutor builds an executor. sink, m and streamer may be nil.
func NewExecutor(transport Transport, sink FactSink, logger *zap.Logger, m *metrics.Metrics, streamer *events.Streamer) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		transport: transport,
		sink:      sink,
		logger:    logger,
		metrics:   m,
		streamer:  streamer,
	}
}

// Execute writes instr and, when it expects an acknowledgement, waits for a
// response that satisfies it. Extracted facts go to the sink and, for
// network facts, to the transport.
func (e *Executor) Execute(ctx context.Context, instr Instruction) (*Result, error) {
	line := Encode(instr)
	code := instr.Code()
	start := time.Now()
	res := &Result{Line: line}

	if ack, ok := instr.(Acknowledger); ok {
		resp, err := e.transport.Query(ctx, line)
		res.Duration = time.Since(start)
		if err != nil {
			return nil, e.fail(code, line, res.Duration, err)
		}
		res.Response = resp
		if !ack.ValidateResponse(resp) {
			e.metrics.RecordAckFailure(code)
			err := types.Errorf(types.KindResponseValidation, code,
				"expected %q in response, got %q", ack.ExpectedAck(), resp)
			return nil, e.fail(code, line, res.Duration, err)
		}
	} else {
		if err := e.transport.SendLine(ctx, line); err != nil {
			return nil, e.fail(code, line, time.Since(start), err)
		}
		res.Duration = time.Since(start)
	}

	if res.Response != "" {
		res.Facts = Facts(instr, res.Response)
		if err := e.forward(res.Facts); err != nil {
			return nil, e.fail(code, line, res.Duration, err)
		}
	}

	e.metrics.RecordInstruction(code, "ok", res.Duration)
	e.streamer.Publish(events.InstructionSent, map[string]any{
		"code":     code,
		"line":     line,
		"response": res.Response,
	})
	e.logger.Debug("Instruction sent",
		zap.String("line", line),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (e *Executor) forward(f state.Facts) error {
	if f.Empty() {
		return nil
	}
	if e.sink != nil {
		if err := e.sink.RecordFacts(f); err != nil {
			return err
		}
	}
	if f.Network != nil {
		if u, ok := e.transport.(NetworkInfoUpdater); ok {
			u.UpdateNetworkInfo(f.Network.IP, f.Network.State)
		}
	}
	return nil
}

func (e *Executor) fail(code, line string, d time.Duration, err error) error {
	e.metrics.RecordInstruction(code, "error", d)
	e.streamer.Publish(events.InstructionFailed, map[string]any{
		"code":  code,
		"line":  line,
		"error": err.Error(),
	})
	e.logger.Warn("Instruction failed",
		zap.String("line", line),
		zap.Error(err))
	return err
}
