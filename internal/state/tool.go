package state

import (
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// NoTool marks that no tool is selected.
const NoTool = -1

type ToolState struct {
	Active  int              `json:"active"`
	Offsets map[int]Position `json:"offsets"`
}

func (t *ToolState) Name() string { return DomainTool }

func (t *ToolState) Reset() {
	*t = ToolState{Active: NoTool, Offsets: make(map[int]Position)}
}

func (t *ToolState) Serialize() ([]byte, error) {
	return serialize(t)
}

func (t *ToolState) Deserialize(data []byte) error {
	var next ToolState
	if err := deserialize(data, &next); err != nil {
		return err
	}
	*t = next
	return nil
}

// Validate checks tool numbers on tool changes and on heater commands that
// address a tool with T.
func (t *ToolState) Validate(instr Instruction) error {
	if instr.CodeType() == "T" {
		n := instr.CodeNumber()
		if n < 0 || n >= MaxTools {
			return types.Errorf(types.KindParameter, codeOf(instr), "tool %d out of range [0, %d)", n, MaxTools)
		}
		return nil
	}
	if is(instr, "M", 104, 109) {
		return rangeCheck(instr, "T", 0, MaxTools-1)
	}
	return nil
}

func (t ToolState) Clone() ToolState {
	out := ToolState{Active: t.Active}
	if t.Offsets != nil {
		out.Offsets = make(map[int]Position, len(t.Offsets))
		for k, v := range t.Offsets {
			out.Offsets[k] = v.Clone()
		}
	}
	return out
}
