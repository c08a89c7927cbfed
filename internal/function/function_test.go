package function

import (
	"context"
	"errors"
	"testing"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	registry *instruction.Registry
	lines    []string
	failOn   string
}

func (r *recorder) Execute(_ context.Context, code string, params []instruction.Param, comment string) (*instruction.Result, error) {
	instr, err := r.registry.New(code, params, comment)
	if err != nil {
		return nil, err
	}
	line := instruction.Encode(instr)
	if line == r.failOn {
		return nil, errors.New("device error")
	}
	r.lines = append(r.lines, line)
	return &instruction.Result{Line: line, Response: "ok"}, nil
}

type fixture struct {
	rec        *recorder
	components *component.Registry
	functions  *Registry
	streamer   *events.Streamer
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	fx := &fixture{
		rec:        &recorder{registry: instruction.NewBuiltinRegistry()},
		components: component.NewRegistry(),
		streamer:   events.NewStreamer(),
	}
	for _, id := range ids {
		_, err := fx.components.Build(id, nil, fx.rec)
		require.NoError(t, err)
	}
	fx.functions = NewRegistry(fx.components, zaptest.NewLogger(t), nil, fx.streamer)
	return fx
}

var printStart = Definition{
	Description: "Heat the nozzle and move into position",
	Components:  []string{"tool:0", "axis:X"},
	Operations: map[string][]Step{
		"heat_and_move": {
			{Component: "tool:0", Action: "set_temp", Value: "PARAM"},
			{Component: "axis:X", Action: "move", Value: "PARAM2"},
		},
		"park": {
			{Component: "axis:X", Action: "home"},
		},
	},
}

func TestHeatAndMove(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	f, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)

	n, ok := f.Arity("heat_and_move")
	require.True(t, ok)
	assert.Equal(t, 2, n)

	results, err := f.Invoke(context.Background(), "heat_and_move", 200, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"M104 T0 S200", "G0 X50"}, fx.rec.lines)
	require.Len(t, results, 2)
	assert.Equal(t, "tool:0", results[0].Component)
	assert.Equal(t, "move", results[1].Action)
}

func TestDefineCopiesDefinition(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	def := printStart.Clone()
	def.Operations["park"][0].Value = []any{1.0}
	f, err := fx.functions.Define("print_start", def)
	require.NoError(t, err)

	def.Components[0] = "fan:0"
	def.Operations["heat_and_move"][1].Action = "home"
	def.Operations["park"][0].Value.([]any)[0] = 2.0
	def.Operations["extra"] = []Step{{Component: "axis:X", Action: "home"}}

	got := f.Definition()
	assert.Equal(t, []string{"tool:0", "axis:X"}, got.Components)
	assert.Equal(t, "move", got.Operations["heat_and_move"][1].Action)
	assert.Equal(t, []any{1.0}, got.Operations["park"][0].Value)
	assert.False(t, f.HasOperation("extra"))

	got.Operations["heat_and_move"][0].Action = "home"
	_, err = f.Invoke(context.Background(), "heat_and_move", 200, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"M104 T0 S200", "G0 X50"}, fx.rec.lines)
}

func TestOperationAccess(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	f, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)

	assert.Equal(t, []string{"heat_and_move", "park"}, f.Operations())

	park, err := f.Operation("park")
	require.NoError(t, err)
	_, err = park(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"G28 X"}, fx.rec.lines)

	_, err = f.Operation("purge")
	assert.ErrorIs(t, err, types.ErrLookup)
	_, err = f.Invoke(context.Background(), "purge")
	assert.ErrorIs(t, err, types.ErrLookup)

	t.Run("qualified call", func(t *testing.T) {
		_, err := fx.functions.Call(context.Background(), "print_start.heat_and_move", 180, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"M104 T0 S180", "G0 X10"}, fx.rec.lines[1:])

		_, err = fx.functions.Call(context.Background(), "print_end.park")
		assert.ErrorIs(t, err, types.ErrLookup)
		_, err = fx.functions.Call(context.Background(), "print_start")
		assert.ErrorIs(t, err, types.ErrLookup)
	})
}

func TestInvokeMissingArgument(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	f, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)

	_, err = f.Invoke(context.Background(), "heat_and_move", 200)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrParameter)
	assert.Contains(t, err.Error(), "print_start.heat_and_move")
	assert.Empty(t, fx.rec.lines)
}

func TestInvokeStopsAtFailingStep(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	fx.rec.failOn = "G0 X50"
	f, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)

	results, err := f.Invoke(context.Background(), "heat_and_move", 200, 50)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "heat_and_move", stepErr.Operation)
	assert.Contains(t, err.Error(), "device error")

	// The first step already ran and stays applied.
	assert.Equal(t, []string{"M104 T0 S200"}, fx.rec.lines)
	assert.Len(t, results, 1)
}

func TestInvokePublishesEvents(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X")
	ch := fx.streamer.Subscribe()
	f, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)

	_, err = f.Invoke(context.Background(), "heat_and_move", 200, 50)
	require.NoError(t, err)

	var got []string
	for len(ch) > 0 {
		got = append(got, (<-ch).Type)
	}
	assert.Equal(t, []string{
		events.FunctionStarted,
		events.StepStarted, events.StepCompleted,
		events.StepStarted, events.StepCompleted,
		events.FunctionCompleted,
	}, got)
}

func TestDefine(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.functions.Define("print_start", Definition{})
	require.NoError(t, err)
	_, err = fx.functions.Define("print_start", Definition{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = fx.functions.Define("a.b", Definition{})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = fx.functions.Get("missing")
	assert.ErrorIs(t, err, types.ErrLookup)
	assert.Equal(t, []string{"print_start"}, fx.functions.Names())
}

func TestValidate(t *testing.T) {
	fx := newFixture(t, "tool:0", "axis:X", "fan:0")
	_, err := fx.functions.Define("print_start", printStart)
	require.NoError(t, err)
	_, err = fx.functions.Define("broken", Definition{
		Components: []string{"axis:Y", "fan:0"},
		Operations: map[string][]Step{
			"go": {
				{Component: "fan:0", Action: "move", Value: 10},
				{Component: "axis:Z", Action: "home"},
				{Component: "fan:0", Value: "PARAM / 0"},
			},
		},
	})
	require.NoError(t, err)

	issues := fx.functions.Validate()
	require.Len(t, issues, 1)
	assert.NotContains(t, issues, "print_start")

	codes := make([]string, 0)
	for _, i := range issues["broken"] {
		assert.Equal(t, "broken", i.Function)
		assert.Equal(t, SevError, i.Severity)
		codes = append(codes, i.Code)
	}
	assert.Equal(t, []string{"FUNCTION_010", "STEP_003", "STEP_002", "STEP_007"}, codes)

	rep := fx.functions.Reports()["broken"]
	assert.False(t, rep.Valid)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "STEP_004", rep.Warnings[0].Code)
	assert.Equal(t, 1, rep.Warnings[0].StepIndex)

	err = rep.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrLookup)
	assert.Contains(t, err.Error(), "broken.go step 0")

	assert.NoError(t, fx.functions.Reports()["print_start"].Err())
}
