package instruction

import (
	"fmt"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

var (
	linearAxes = []string{"X", "Y", "Z"}
	motionAxes = []string{"X", "Y", "Z", "E"}
)

// Move is G0/G1.
type Move struct {
	Base
	Ack
	modal
}

func (m Move) ApplyState(s *state.Snapshot) error {
	for _, axis := range motionAxes {
		v, ok, err := state.NumberParam(m, axis)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		mode := s.Motion.Positioning
		if axis == "E" {
			mode = s.Motion.Extrusion
		}
		if mode == state.Relative {
			cur, _ := s.Motion.Position.Axis(axis)
			v += cur
		}
		s.Motion.Position.SetAxis(axis, v)
	}
	f, ok, err := state.NumberParam(m, "F")
	if err != nil {
		return err
	}
	if ok {
		s.Motion.FeedRate = f
	}
	syncMachine(s)
	return nil
}

// Home is G28. Without axis flags every linear axis is homed.
type Home struct {
	Base
	Ack
	blocking
}

func (h Home) ApplyState(s *state.Snapshot) error {
	var axes []string
	for _, a := range linearAxes {
		if h.Has(a) {
			axes = append(axes, a)
		}
	}
	if len(axes) == 0 {
		axes = linearAxes
	}
	for _, a := range axes {
		s.Coordinate.MachinePosition.SetAxis(a, 0)
	}
	syncWork(s)
	s.Motion.MarkHomed(axes...)
	return nil
}

// SetPosition is G92.
type SetPosition struct {
	Base
	Ack
}

func (p SetPosition) ApplyState(s *state.Snapshot) error {
	set := false
	for _, axis := range motionAxes {
		v, ok, err := state.NumberParam(p, axis)
		if err != nil {
			return err
		}
		if ok {
			s.Motion.Position.SetAxis(axis, v)
			set = true
		}
	}
	if !set {
		for _, axis := range linearAxes {
			s.Motion.Position.SetAxis(axis, 0)
		}
		if s.Motion.Position.E != nil {
			s.Motion.Position.SetAxis("E", 0)
		}
	}
	return nil
}

// Positioning is G90 (absolute) and G91 (relative).
type Positioning struct {
	Base
	Ack
	modal
	mode state.PositioningMode
}

func (p Positioning) ApplyState(s *state.Snapshot) error {
	s.Motion.Positioning = p.mode
	return nil
}

// ExtrusionMode is M82 (absolute) and M83 (relative).
type ExtrusionMode struct {
	Base
	Ack
	modal
	mode state.PositioningMode
}

func (e ExtrusionMode) ApplyState(s *state.Snapshot) error {
	s.Motion.Extrusion = e.mode
	return nil
}

// UnitsMode is G20 (inches) and G21 (millimeters).
type UnitsMode struct {
	Base
	Ack
	modal
	units state.Units
}

func (u UnitsMode) ApplyState(s *state.Snapshot) error {
	s.Motion.Units = u.units
	return nil
}

// PlaneSelect is G17, G18 and G19.
type PlaneSelect struct {
	Base
	Ack
	modal
	plane state.Plane
}

func (p PlaneSelect) ApplyState(s *state.Snapshot) error {
	s.Motion.Plane = p.plane
	return nil
}

// WorkSystem is G54..G59.
type WorkSystem struct {
	Base
	Ack
	modal
}

func (w WorkSystem) ApplyState(s *state.Snapshot) error {
	s.Coordinate.Active = w.Code()
	syncWork(s)
	return nil
}

// SetWorkOffset is G10. L2 writes the offset, L20 computes it so the current
// position reads as the given value.
type SetWorkOffset struct {
	Base
	Ack
}

func (g SetWorkOffset) ApplyState(s *state.Snapshot) error {
	p, ok, err := state.NumberParam(g, "P")
	if err != nil {
		return err
	}
	if !ok || p < 1 || p > state.WorkOffsets {
		return types.Errorf(types.KindParameter, g.Code(), "work offset index P out of range")
	}
	l, ok, err := state.NumberParam(g, "L")
	if err != nil {
		return err
	}
	if !ok {
		l = 2
	}
	idx := int(p) - 1
	off := &s.Coordinate.Offsets[idx].Offset
	for _, axis := range linearAxes {
		v, ok, err := state.NumberParam(g, axis)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if l == 20 {
			m, _ := s.Coordinate.MachinePosition.Axis(axis)
			v = m - v
		}
		off.SetAxis(axis, v)
	}
	if s.Coordinate.Active == state.WorkSystemName(idx) {
		syncWork(s)
	}
	return nil
}

type heater int

const (
	heaterTool heater = iota
	heaterBed
	heaterChamber
)

// SetTemperature is M104, M140 and M141.
type SetTemperature struct {
	Base
	Ack
	heater heater
}

func (t SetTemperature) ApplyState(s *state.Snapshot) error {
	return t.apply(s, false)
}

func (t SetTemperature) apply(s *state.Snapshot, reached bool) error {
	target, ok, err := state.NumberParam(t, "S")
	if err != nil || !ok {
		return err
	}
	var r *state.Reading
	switch t.heater {
	case heaterBed:
		r = &s.Temperature.Bed
	case heaterChamber:
		r = &s.Temperature.Chamber
	default:
		tool, err := t.tool(s)
		if err != nil {
			return err
		}
		s.Temperature.SetToolTarget(tool, target)
		if reached {
			reading := s.Temperature.Tools[tool]
			reading.Current = target
			s.Temperature.Tools[tool] = reading
		}
		return nil
	}
	r.Target = target
	if reached {
		r.Current = target
	}
	return nil
}

// tool is T when given, else the active tool, else tool 0.
func (t SetTemperature) tool(s *state.Snapshot) (int, error) {
	v, ok, err := state.NumberParam(t, "T")
	if err != nil {
		return 0, err
	}
	if ok {
		return int(v), nil
	}
	if s.Tool.Active != state.NoTool {
		return s.Tool.Active, nil
	}
	return 0, nil
}

// WaitTemperature is M109, M190 and M191. It returns once the heater has
// reached its target, so the target is also recorded as current.
type WaitTemperature struct {
	SetTemperature
	blocking
}

func (t WaitTemperature) ApplyState(s *state.Snapshot) error {
	return t.apply(s, true)
}

// FanSpeed is M106. P defaults to fan 0, S to full speed.
type FanSpeed struct {
	Base
	Ack
}

func (f FanSpeed) ApplyState(s *state.Snapshot) error {
	fan, err := intParam(f, "P", 0)
	if err != nil {
		return err
	}
	speed, err := intParam(f, "S", int(state.MaxPWM))
	if err != nil {
		return err
	}
	setLevel(&s.IO.Fans, fan, speed)
	return nil
}

// FanOff is M107.
type FanOff struct {
	Base
	Ack
}

func (f FanOff) ApplyState(s *state.Snapshot) error {
	fan, err := intParam(f, "P", 0)
	if err != nil {
		return err
	}
	setLevel(&s.IO.Fans, fan, 0)
	return nil
}

// SetOutput is M42.
type SetOutput struct {
	Base
	Ack
}

func (o SetOutput) ApplyState(s *state.Snapshot) error {
	pin, err := intParam(o, "P", 0)
	if err != nil {
		return err
	}
	level, err := intParam(o, "S", 0)
	if err != nil {
		return err
	}
	setLevel(&s.IO.Outputs, pin, level)
	return nil
}

// SelectTool is T<n>.
type SelectTool struct {
	Base
	Ack
}

func (t SelectTool) ApplyState(s *state.Snapshot) error {
	s.Tool.Active = t.CodeNumber()
	return nil
}

// ReportTemperatures is M105.
type ReportTemperatures struct {
	Base
	Ack
	reportsTemperatures
}

// ReportPosition is M114.
type ReportPosition struct {
	Base
	Ack
	reportsPosition
}

// ReportFirmware is M115.
type ReportFirmware struct {
	Base
	Ack
	reportsFirmware
}

// NetworkStatus is M552.
type NetworkStatus struct {
	Base
	Ack
	reportsNetwork
}

// EmergencyStop is M112. The firmware halts without acknowledging.
type EmergencyStop struct {
	Base
	immediate
}

// FinishMoves is M400.
type FinishMoves struct {
	Base
	Ack
	blocking
}

// Reset is M999. Firmwares answer a reset with a banner rather than "ok".
type Reset struct {
	Base
	AnyAck
}

func syncMachine(s *state.Snapshot) {
	s.Coordinate.MachinePosition = s.Motion.Position.Add(s.Coordinate.ActiveOffset())
}

func syncWork(s *state.Snapshot) {
	off := s.Coordinate.ActiveOffset()
	for _, axis := range linearAxes {
		m, _ := s.Coordinate.MachinePosition.Axis(axis)
		o, _ := off.Axis(axis)
		s.Motion.Position.SetAxis(axis, m-o)
	}
}

func intParam(instr Instruction, letter string, def int) (int, error) {
	v, ok, err := state.NumberParam(instr, letter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return int(v), nil
}

func setLevel(m *map[int]int, key, level int) {
	if *m == nil {
		*m = make(map[int]int)
	}
	(*m)[key] = level
}

func requireParams(b Base, letters ...string) error {
	for _, l := range letters {
		if v, ok := b.Param(l); !ok || v == nil {
			return types.Errorf(types.KindParameter, b.Code(), "missing parameter %s", l)
		}
	}
	return nil
}

type builder func(b Base) (Instruction, error)

func plain(build func(b Base) Instruction) builder {
	return func(b Base) (Instruction, error) { return build(b), nil }
}

// builtins lists the instruction set shipped with the core.
func builtins() map[string]builder {
	out := map[string]builder{
		"G0": plain(func(b Base) Instruction { return Move{Base: b, modal: GroupMotion} }),
		"G1": plain(func(b Base) Instruction { return Move{Base: b, modal: GroupMotion} }),
		"G10": func(b Base) (Instruction, error) {
			if err := requireParams(b, "P"); err != nil {
				return nil, err
			}
			return SetWorkOffset{Base: b}, nil
		},
		"G17":  plain(func(b Base) Instruction { return PlaneSelect{Base: b, modal: GroupPlane, plane: state.PlaneXY} }),
		"G18":  plain(func(b Base) Instruction { return PlaneSelect{Base: b, modal: GroupPlane, plane: state.PlaneXZ} }),
		"G19":  plain(func(b Base) Instruction { return PlaneSelect{Base: b, modal: GroupPlane, plane: state.PlaneYZ} }),
		"G20":  plain(func(b Base) Instruction { return UnitsMode{Base: b, modal: GroupUnits, units: state.Inches} }),
		"G21":  plain(func(b Base) Instruction { return UnitsMode{Base: b, modal: GroupUnits, units: state.Millimeters} }),
		"G28":  plain(func(b Base) Instruction { return Home{Base: b} }),
		"G90":  plain(func(b Base) Instruction { return Positioning{Base: b, modal: GroupDistance, mode: state.Absolute} }),
		"G91":  plain(func(b Base) Instruction { return Positioning{Base: b, modal: GroupDistance, mode: state.Relative} }),
		"G92":  plain(func(b Base) Instruction { return SetPosition{Base: b} }),
		"M82":  plain(func(b Base) Instruction { return ExtrusionMode{Base: b, modal: GroupExtrusion, mode: state.Absolute} }),
		"M83":  plain(func(b Base) Instruction { return ExtrusionMode{Base: b, modal: GroupExtrusion, mode: state.Relative} }),
		"M104": plain(func(b Base) Instruction { return SetTemperature{Base: b, heater: heaterTool} }),
		"M105": plain(func(b Base) Instruction { return ReportTemperatures{Base: b} }),
		"M106": plain(func(b Base) Instruction { return FanSpeed{Base: b} }),
		"M107": plain(func(b Base) Instruction { return FanOff{Base: b} }),
		"M109": plain(func(b Base) Instruction {
			return WaitTemperature{SetTemperature: SetTemperature{Base: b, heater: heaterTool}}
		}),
		"M112": plain(func(b Base) Instruction { return EmergencyStop{Base: b} }),
		"M114": plain(func(b Base) Instruction { return ReportPosition{Base: b} }),
		"M115": plain(func(b Base) Instruction { return ReportFirmware{Base: b} }),
		"M140": plain(func(b Base) Instruction { return SetTemperature{Base: b, heater: heaterBed} }),
		"M141": plain(func(b Base) Instruction { return SetTemperature{Base: b, heater: heaterChamber} }),
		"M190": plain(func(b Base) Instruction {
			return WaitTemperature{SetTemperature: SetTemperature{Base: b, heater: heaterBed}}
		}),
		"M191": plain(func(b Base) Instruction {
			return WaitTemperature{SetTemperature: SetTemperature{Base: b, heater: heaterChamber}}
		}),
		"M400": plain(func(b Base) Instruction { return FinishMoves{Base: b} }),
		"M42": func(b Base) (Instruction, error) {
			if err := requireParams(b, "P"); err != nil {
				return nil, err
			}
			return SetOutput{Base: b}, nil
		},
		"M552": plain(func(b Base) Instruction { return NetworkStatus{Base: b} }),
		"M999": plain(func(b Base) Instruction { return Reset{Base: b} }),
	}
	for i := 0; i < state.WorkOffsets; i++ {
		out[state.WorkSystemName(i)] = plain(func(b Base) Instruction {
			return WorkSystem{Base: b, modal: GroupCoordinates}
		})
	}
	for n := 0; n < state.MaxTools; n++ {
		out[fmt.Sprintf("T%d", n)] = plain(func(b Base) Instruction { return SelectTool{Base: b} })
	}
	return out
}

// RegisterBuiltins adds every builtin instruction to r.
func RegisterBuiltins(r *Registry) error {
	for code, build := range builtins() {
		codeType, number, err := ParseCode(code)
		if err != nil {
			return err
		}
		build := build
		err = r.Register(code, func(params []Param, comment string) (Instruction, error) {
			return build(NewBase(codeType, number, params, comment))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry returns a registry holding the builtin set.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}
