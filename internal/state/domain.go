package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// Domain names, in validation order.
const (
	DomainMotion      = "motion"
	DomainTool        = "tool"
	DomainTemperature = "temperature"
	DomainCoordinate  = "coordinate"
	DomainIO          = "io"
)

// Protocol-level bounds checked by the domains.
const (
	MaxTemperature = 500.0
	MaxPWM         = 255.0
	MaxTools       = 16
	WorkOffsets    = 6
)

// Instruction is the view of a protocol command that state validation needs.
type Instruction interface {
	CodeType() string
	CodeNumber() int
	Param(letter string) (any, bool)
}

// Validator lets an instruction take over state validation entirely.
type Validator interface {
	ValidateState(s Snapshot) error
}

// Applier lets an instruction mutate state. ApplyState receives a working
// copy; the manager commits it only when ApplyState returns nil.
type Applier interface {
	ApplyState(s *Snapshot) error
}

// Domain is one independently serializable slice of machine state.
type Domain interface {
	Name() string
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
	Reset()
	Validate(instr Instruction) error
}

// Snapshot is a full copy of every domain.
type Snapshot struct {
	Motion      MotionState      `json:"motion"`
	Tool        ToolState        `json:"tool"`
	Temperature TemperatureState `json:"temperature"`
	Coordinate  CoordinateState  `json:"coordinate"`
	IO          IOState          `json:"io"`
}

// NewSnapshot returns every domain at its defaults.
func NewSnapshot() Snapshot {
	var s Snapshot
	for _, d := range s.domains() {
		d.Reset()
	}
	return s
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Motion:      s.Motion.Clone(),
		Tool:        s.Tool.Clone(),
		Temperature: s.Temperature.Clone(),
		Coordinate:  s.Coordinate.Clone(),
		IO:          s.IO.Clone(),
	}
}

func (s *Snapshot) domains() []Domain {
	return []Domain{&s.Motion, &s.Tool, &s.Temperature, &s.Coordinate, &s.IO}
}

func is(instr Instruction, codeType string, numbers ...int) bool {
	if instr.CodeType() != codeType {
		return false
	}
	for _, n := range numbers {
		if instr.CodeNumber() == n {
			return true
		}
	}
	return false
}

func codeOf(instr Instruction) string {
	return fmt.Sprintf("%s%d", instr.CodeType(), instr.CodeNumber())
}

// NumberParam reads a numeric parameter. ok is false when the letter is absent.
func NumberParam(instr Instruction, letter string) (v float64, ok bool, err error) {
	raw, ok := instr.Param(letter)
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, err = ToFloat(raw)
	if err != nil {
		return 0, true, types.Errorf(types.KindParameter, codeOf(instr), "parameter %s: %v", letter, err)
	}
	return v, true, nil
}

// ToFloat converts the numeric shapes that reach the state layer. NaN and
// infinities are rejected.
func ToFloat(v any) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, types.Errorf(types.KindParameter, "number", "not a finite number: %v", v)
	}
	return f, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func rangeCheck(instr Instruction, letter string, lo, hi float64) error {
	v, ok, err := NumberParam(instr, letter)
	if err != nil || !ok {
		return err
	}
	if v < lo || v > hi {
		return types.Errorf(types.KindParameter, codeOf(instr),
			"parameter %s=%g out of range [%g, %g]", letter, v, lo, hi)
	}
	return nil
}

func serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return data, nil
}

func deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to deserialize state: %w", err)
	}
	return nil
}
