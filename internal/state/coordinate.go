package state

import (
	"fmt"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// WorkOffset is one named work coordinate system (G54..G59).
type WorkOffset struct {
	Name   string   `json:"name"`
	Offset Position `json:"offset"`
}

// CoordinateState holds the six work offsets, the active one and the
// absolute machine position.
type CoordinateState struct {
	Offsets         [WorkOffsets]WorkOffset `json:"offsets"`
	Active          string                  `json:"active"`
	MachinePosition Position                `json:"machine_position"`
}

// WorkSystemName returns "G54" for index 0 through "G59" for index 5.
func WorkSystemName(index int) string {
	return fmt.Sprintf("G%d", 54+index)
}

// WorkSystemIndex is the inverse of WorkSystemName.
func WorkSystemIndex(name string) (int, bool) {
	for i := 0; i < WorkOffsets; i++ {
		if WorkSystemName(i) == name {
			return i, true
		}
	}
	return 0, false
}

func (c *CoordinateState) Name() string { return DomainCoordinate }

func (c *CoordinateState) Reset() {
	*c = CoordinateState{Active: WorkSystemName(0)}
	c.normalize()
}

func (c *CoordinateState) Serialize() ([]byte, error) {
	return serialize(c)
}

func (c *CoordinateState) Deserialize(data []byte) error {
	var next CoordinateState
	if err := deserialize(data, &next); err != nil {
		return err
	}
	next.normalize()
	*c = next
	return nil
}

// normalize keeps the six offsets named G54..G59 whatever the input held.
func (c *CoordinateState) normalize() {
	for i := range c.Offsets {
		c.Offsets[i].Name = WorkSystemName(i)
	}
	if c.Active == "" {
		c.Active = WorkSystemName(0)
	}
}

// Validate checks G10 work offset writes: L2 or L20, P within 1..6.
func (c *CoordinateState) Validate(instr Instruction) error {
	if !is(instr, "G", 10) {
		return nil
	}
	l, ok, err := NumberParam(instr, "L")
	if err != nil {
		return err
	}
	if ok && l != 2 && l != 20 {
		return types.Errorf(types.KindParameter, codeOf(instr), "unsupported L%g, expected L2 or L20", l)
	}
	p, ok, err := NumberParam(instr, "P")
	if err != nil {
		return err
	}
	if !ok {
		return types.Errorf(types.KindParameter, codeOf(instr), "missing work offset index P")
	}
	if p < 1 || p > WorkOffsets {
		return types.Errorf(types.KindParameter, codeOf(instr), "work offset P%g out of range [1, %d]", p, WorkOffsets)
	}
	return nil
}

func (c CoordinateState) Clone() CoordinateState {
	out := c
	for i := range c.Offsets {
		out.Offsets[i].Offset = c.Offsets[i].Offset.Clone()
	}
	out.MachinePosition = c.MachinePosition.Clone()
	return out
}

// ActiveOffset returns the offset of the active work system.
func (c *CoordinateState) ActiveOffset() Position {
	if i, ok := WorkSystemIndex(c.Active); ok {
		return c.Offsets[i].Offset
	}
	return Position{}
}
