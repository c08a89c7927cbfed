package instruction

import (
	"context"
	"errors"
	"testing"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeTransport struct {
	sent      []string
	queried   []string
	responses map[string]string
	err       error

	ip, netState string
}

func (f *fakeTransport) SendLine(_ context.Context, line string) error {
	f.sent = append(f.sent, line)
	return f.err
}

func (f *fakeTransport) Query(_ context.Context, line string) (string, error) {
	f.queried = append(f.queried, line)
	if f.err != nil {
		return "", f.err
	}
	if resp, ok := f.responses[line]; ok {
		return resp, nil
	}
	return "ok", nil
}

func (f *fakeTransport) UpdateNetworkInfo(ip, s string) {
	f.ip, f.netState = ip, s
}

func newTestExecutor(t *testing.T, tr *fakeTransport, sink FactSink) (*Executor, *events.Streamer) {
	streamer := events.NewStreamer()
	return NewExecutor(tr, sink, zaptest.NewLogger(t), metrics.New(metrics.Config{}), streamer), streamer
}

func TestExecutorAcknowledged(t *testing.T) {
	tr := &fakeTransport{}
	exec, streamer := newTestExecutor(t, tr, nil)
	sent := streamer.Subscribe(events.InstructionSent)

	instr, err := NewBuiltinRegistry().New("G1", []Param{P("X", 5)}, "")
	require.NoError(t, err)

	res, err := exec.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.Equal(t, "G1 X5", res.Line)
	assert.Equal(t, "ok", res.Response)
	assert.Equal(t, []string{"G1 X5"}, tr.queried)
	assert.Empty(t, tr.sent)
	require.Len(t, sent, 1)
}

func TestExecutorFireAndForget(t *testing.T) {
	tr := &fakeTransport{}
	exec, _ := newTestExecutor(t, tr, nil)

	instr, err := NewBuiltinRegistry().New("M112", nil, "")
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.Equal(t, []string{"M112"}, tr.sent)
	assert.Empty(t, tr.queried)
}

func TestExecutorRejectsBadAck(t *testing.T) {
	tr := &fakeTransport{responses: map[string]string{"M104 S200": "ERROR: heater fault"}}
	exec, streamer := newTestExecutor(t, tr, nil)
	failed := streamer.Subscribe(events.InstructionFailed)

	instr, err := NewBuiltinRegistry().New("M104", []Param{P("S", 200)}, "")
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), instr)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrResponseValidation)
	assert.Len(t, failed, 1)
}

func TestExecutorTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	exec, _ := newTestExecutor(t, &fakeTransport{err: boom}, nil)

	instr, err := NewBuiltinRegistry().New("G28", nil, "")
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), instr)
	assert.ErrorIs(t, err, boom)
}

func TestExecutorForwardsFacts(t *testing.T) {
	tr := &fakeTransport{responses: map[string]string{
		"M105": "ok T0:205.0 /210.0 B:60.0/60.0",
		"M552": "Network is enabled, IP address = 192.168.1.20\nok",
	}}
	mgr := state.NewManager(zaptest.NewLogger(t))
	exec, _ := newTestExecutor(t, tr, mgr)
	r := NewBuiltinRegistry()

	m105, err := r.New("M105", nil, "")
	require.NoError(t, err)
	res, err := exec.Execute(context.Background(), m105)
	require.NoError(t, err)
	assert.Equal(t, state.Reading{Current: 60, Target: 60}, *res.Facts.Bed)
	assert.Equal(t, state.Reading{Current: 205, Target: 210}, mgr.Snapshot().Temperature.Tools[0])

	m552, err := r.New("M552", nil, "")
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), m552)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", mgr.Snapshot().IO.Network.IP)
	assert.Equal(t, "192.168.1.20", tr.ip)
	assert.Equal(t, "connected", tr.netState)
}
