package state

// Facts are values extracted from device responses. Nil/empty members are
// left untouched when recorded.
type Facts struct {
	Position map[string]float64
	Tools    map[int]Reading
	Bed      *Reading
	Chamber  *Reading
	Network  *NetworkInfo
	Firmware *FirmwareInfo
}

func (f Facts) Empty() bool {
	return len(f.Position) == 0 && len(f.Tools) == 0 && f.Bed == nil &&
		f.Chamber == nil && f.Network == nil && f.Firmware == nil
}

// factUpdate routes facts through Apply so domains change in one place only.
type factUpdate struct {
	facts Facts
}

func (factUpdate) CodeType() string         { return "" }
func (factUpdate) CodeNumber() int          { return 0 }
func (factUpdate) Param(string) (any, bool) { return nil, false }

func (u factUpdate) ApplyState(s *Snapshot) error {
	f := u.facts
	for axis, v := range f.Position {
		s.Motion.Position.SetAxis(axis, v)
	}
	if len(f.Position) > 0 {
		s.Coordinate.MachinePosition = s.Motion.Position.Add(s.Coordinate.ActiveOffset())
	}
	if s.Temperature.Tools == nil && len(f.Tools) > 0 {
		s.Temperature.Tools = make(map[int]Reading, len(f.Tools))
	}
	for tool, r := range f.Tools {
		s.Temperature.Tools[tool] = r
	}
	if f.Bed != nil {
		s.Temperature.Bed = *f.Bed
	}
	if f.Chamber != nil {
		s.Temperature.Chamber = *f.Chamber
	}
	if f.Network != nil {
		if f.Network.IP != "" {
			s.IO.Network.IP = f.Network.IP
		}
		if f.Network.State != "" {
			s.IO.Network.State = f.Network.State
		}
	}
	if f.Firmware != nil {
		s.IO.Firmware = *f.Firmware
	}
	return nil
}

// RecordFacts folds extracted facts into state.
func (m *Manager) RecordFacts(f Facts) error {
	if f.Empty() {
		return nil
	}
	return m.Apply(factUpdate{facts: f})
}
