package state

// Reading is one heater's current and target temperature.
type Reading struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

type TemperatureState struct {
	Tools   map[int]Reading `json:"tools"`
	Bed     Reading         `json:"bed"`
	Chamber Reading         `json:"chamber"`
}

func (t *TemperatureState) Name() string { return DomainTemperature }

func (t *TemperatureState) Reset() {
	*t = TemperatureState{Tools: make(map[int]Reading)}
}

func (t *TemperatureState) Serialize() ([]byte, error) {
	return serialize(t)
}

func (t *TemperatureState) Deserialize(data []byte) error {
	var next TemperatureState
	if err := deserialize(data, &next); err != nil {
		return err
	}
	*t = next
	return nil
}

// Validate bounds S on every heater command.
func (t *TemperatureState) Validate(instr Instruction) error {
	if is(instr, "M", 104, 109, 140, 190, 141, 191) {
		return rangeCheck(instr, "S", 0, MaxTemperature)
	}
	return nil
}

func (t TemperatureState) Clone() TemperatureState {
	out := TemperatureState{Bed: t.Bed, Chamber: t.Chamber}
	if t.Tools != nil {
		out.Tools = make(map[int]Reading, len(t.Tools))
		for k, v := range t.Tools {
			out.Tools[k] = v
		}
	}
	return out
}

// SetToolTarget updates the target of one tool heater.
func (t *TemperatureState) SetToolTarget(tool int, target float64) {
	if t.Tools == nil {
		t.Tools = make(map[int]Reading)
	}
	r := t.Tools[tool]
	r.Target = target
	t.Tools[tool] = r
}
