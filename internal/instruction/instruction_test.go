package instruction

import (
	"math"
	"testing"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	r := NewBuiltinRegistry()

	tests := []struct {
		name    string
		code    string
		params  []Param
		comment string
		want    string
	}{
		{"no params", "G28", nil, "", "G28"},
		{"declaration order", "G1", []Param{P("Z", 0.2), P("X", 10), P("F", 1500.0)}, "", "G1 Z0.2 X10 F1500"},
		{"shortest float", "G0", []Param{P("X", 1.0 / 3.0)}, "", "G0 X0.3333333333333333"},
		{"flags", "G28", []Param{Flag("X"), Flag("y")}, "", "G28 X Y"},
		{"comment", "M104", []Param{P("T", 0), P("S", 200)}, "heat", "M104 T0 S200 ; heat"},
		{"tool change", "T1", nil, "", "T1"},
		{"numeric string", "M106", []Param{P("S", "127")}, "", "M106 S127"},
		{"quoted string", "M552", []Param{P("P", "my net")}, "", `M552 P"my net"`},
		{"negative", "G92", []Param{P("E", -2.5)}, "", "G92 E-2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instr, err := r.New(tt.code, tt.params, tt.comment)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Encode(instr))
			assert.Equal(t, Encode(instr), Encode(instr))
		})
	}
}

func TestInstructionIsImmutable(t *testing.T) {
	params := []Param{P("X", 1)}
	instr, err := NewBuiltinRegistry().New("G0", params, "")
	require.NoError(t, err)

	params[0].Value = 99
	got := instr.Params()
	got[0].Value = 42

	assert.Equal(t, "G0 X1", Encode(instr))
}

func TestParseParam(t *testing.T) {
	p, err := ParseParam("X=10.5")
	require.NoError(t, err)
	assert.Equal(t, P("X", 10.5), p)

	p, err = ParseParam("s200")
	require.NoError(t, err)
	assert.Equal(t, P("S", 200.0), p)

	p, err = ParseParam("Z")
	require.NoError(t, err)
	assert.Equal(t, Flag("Z"), p)

	_, err = ParseParam("=1")
	assert.Error(t, err)

	for _, word := range []string{"XNaN", "X=inf", "Y-Infinity"} {
		_, err = ParseParam(word)
		assert.ErrorIs(t, err, types.ErrParameter, word)
	}
}

func TestNewRejectsMultiLineWords(t *testing.T) {
	r := NewBuiltinRegistry()

	tests := []struct {
		name    string
		params  []Param
		comment string
	}{
		{"comment with newline", []Param{P("X", 1)}, "note\nM112"},
		{"comment with carriage return", nil, "note\rM112"},
		{"letter with newline", []Param{P("X\nM112\n", 1)}, ""},
		{"empty letter", []Param{{Letter: "", Value: 1}}, ""},
		{"lowercase letter", []Param{{Letter: "x", Value: 1}}, ""},
		{"string value with newline", []Param{P("S", "a\nM112")}, ""},
		{"nan value", []Param{P("X", math.NaN())}, ""},
		{"infinite value", []Param{P("X", math.Inf(1))}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.New("G1", tt.params, tt.comment)
			assert.ErrorIs(t, err, types.ErrParameter)
		})
	}

	_, err := r.New("G1", []Param{P("X", 1)}, "approach; slowly")
	assert.NoError(t, err)
}

func TestParseLine(t *testing.T) {
	code, params, comment, err := ParseLine("g1 X10 F300 ; approach bed")
	require.NoError(t, err)
	assert.Equal(t, "G1", code)
	assert.Equal(t, []Param{P("X", 10.0), P("F", 300.0)}, params)
	assert.Equal(t, "approach bed", comment)

	instr, err := NewBuiltinRegistry().New(code, params, comment)
	require.NoError(t, err)
	assert.Equal(t, "G1 X10 F300 ; approach bed", Encode(instr))

	_, _, _, err = ParseLine("  ; only a comment")
	assert.Error(t, err)
	_, _, _, err = ParseLine("GX Y1")
	assert.ErrorIs(t, err, types.ErrLookup)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := func(params []Param, comment string) (Instruction, error) {
		return Move{Base: NewBase("G", 1, params, comment), modal: GroupMotion}, nil
	}

	require.NoError(t, r.Register("G1", f))
	assert.True(t, r.Has("g1"))

	err := r.Register("G1", f)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = r.New("G2", nil, "")
	assert.ErrorIs(t, err, types.ErrLookup)

	_, err = r.New("X", nil, "")
	assert.ErrorIs(t, err, types.ErrLookup)

	assert.Equal(t, []string{"G1"}, r.Codes())
}

func TestBuiltinRegistryContents(t *testing.T) {
	r := NewBuiltinRegistry()
	for _, code := range []string{"G0", "G1", "G10", "G28", "G54", "G59", "M104", "M112", "M400", "M999", "T0", "T15"} {
		assert.True(t, r.Has(code), code)
	}
	assert.False(t, r.Has("T16"))

	_, err := r.New("M42", []Param{P("S", 1)}, "")
	assert.ErrorIs(t, err, types.ErrParameter)
}

func TestCapabilities(t *testing.T) {
	r := NewBuiltinRegistry()
	caps := func(code string) []string {
		instr, err := r.New(code, nil, "")
		require.NoError(t, err)
		return Capabilities(instr)
	}

	assert.Equal(t, []string{"modal:motion", "expects_ack"}, caps("G1"))
	assert.Equal(t, []string{"immediate"}, caps("M112"))
	assert.Equal(t, []string{"blocks_execution", "expects_ack"}, caps("M400"))
	assert.Equal(t, []string{"expects_ack", "extract:temperature"}, caps("M105"))
	assert.Equal(t, []string{"modal:coordinate_system", "expects_ack"}, caps("G55"))
	assert.Contains(t, caps("M109"), "blocks_execution")
}

func TestAckValidation(t *testing.T) {
	var ack Ack
	assert.Equal(t, "ok", ack.ExpectedAck())
	assert.True(t, ack.ValidateResponse("OK\n"))
	assert.True(t, ack.ValidateResponse("Ok, done"))
	assert.False(t, ack.ValidateResponse("ERROR"))

	custom := Ack{Token: "done"}
	assert.True(t, custom.ValidateResponse("Homing DONE"))
	assert.False(t, custom.ValidateResponse("ok"))

	instr, err := NewBuiltinRegistry().New("M999", nil, "")
	require.NoError(t, err)
	a, ok := instr.(Acknowledger)
	require.True(t, ok)
	assert.True(t, a.ValidateResponse("Resetting... start"))
	assert.True(t, a.ValidateResponse(""))
}
