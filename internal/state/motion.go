package state

import (
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

type PositioningMode string

const (
	Absolute PositioningMode = "absolute"
	Relative PositioningMode = "relative"
)

type Units string

const (
	Millimeters Units = "mm"
	Inches      Units = "inch"
)

type Plane string

const (
	PlaneXY Plane = "XY"
	PlaneXZ Plane = "XZ"
	PlaneYZ Plane = "YZ"
)

// MotionState tracks how motion instructions are interpreted and where the
// tool head is in work coordinates.
type MotionState struct {
	Positioning PositioningMode `json:"positioning"`
	Extrusion   PositioningMode `json:"extrusion"`
	Units       Units           `json:"units"`
	Position    Position        `json:"position"`
	FeedRate    float64         `json:"feed_rate"`
	Plane       Plane           `json:"plane"`
	Homed       []string        `json:"homed"`
}

func (m *MotionState) Name() string { return DomainMotion }

func (m *MotionState) Reset() {
	*m = MotionState{
		Positioning: Absolute,
		Extrusion:   Absolute,
		Units:       Millimeters,
		Plane:       PlaneXY,
	}
}

func (m *MotionState) Serialize() ([]byte, error) {
	return serialize(m)
}

func (m *MotionState) Deserialize(data []byte) error {
	var next MotionState
	if err := deserialize(data, &next); err != nil {
		return err
	}
	*m = next
	return nil
}

// Validate rejects non-positive feed rates and non-numeric axis words on moves.
func (m *MotionState) Validate(instr Instruction) error {
	if !is(instr, "G", 0, 1, 92) {
		return nil
	}
	for _, axis := range []string{"X", "Y", "Z", "E"} {
		if _, _, err := NumberParam(instr, axis); err != nil {
			return err
		}
	}
	if is(instr, "G", 0, 1) {
		f, ok, err := NumberParam(instr, "F")
		if err != nil {
			return err
		}
		if ok && f <= 0 {
			return types.Errorf(types.KindParameter, codeOf(instr), "feed rate must be positive, got %g", f)
		}
	}
	return nil
}

func (m MotionState) Clone() MotionState {
	out := m
	out.Position = m.Position.Clone()
	if m.Homed != nil {
		out.Homed = make([]string, len(m.Homed))
		copy(out.Homed, m.Homed)
	}
	return out
}

// MarkHomed records axes as homed, keeping the list free of duplicates.
func (m *MotionState) MarkHomed(axes ...string) {
	for _, a := range axes {
		found := false
		for _, h := range m.Homed {
			if h == a {
				found = true
				break
			}
		}
		if !found {
			m.Homed = append(m.Homed, a)
		}
	}
}
