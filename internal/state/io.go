package state

type NetworkInfo struct {
	IP    string `json:"ip,omitempty"`
	State string `json:"state,omitempty"`
}

type FirmwareInfo struct {
	Name     string            `json:"name,omitempty"`
	Version  string            `json:"version,omitempty"`
	Machine  string            `json:"machine,omitempty"`
	Protocol string            `json:"protocol,omitempty"`
	Extra    map[string]string `json:"extra"`
}

// IOState holds fan and output levels plus facts reported by the firmware.
type IOState struct {
	Fans     map[int]int  `json:"fans"`
	Outputs  map[int]int  `json:"outputs"`
	Network  NetworkInfo  `json:"network"`
	Firmware FirmwareInfo `json:"firmware"`
}

func (s *IOState) Name() string { return DomainIO }

func (s *IOState) Reset() {
	*s = IOState{Fans: make(map[int]int), Outputs: make(map[int]int)}
}

func (s *IOState) Serialize() ([]byte, error) {
	return serialize(s)
}

func (s *IOState) Deserialize(data []byte) error {
	var next IOState
	if err := deserialize(data, &next); err != nil {
		return err
	}
	*s = next
	return nil
}

// Validate bounds fan and output PWM values.
func (s *IOState) Validate(instr Instruction) error {
	switch {
	case is(instr, "M", 106):
		if err := rangeCheck(instr, "P", 0, 255); err != nil {
			return err
		}
		return rangeCheck(instr, "S", 0, MaxPWM)
	case is(instr, "M", 107):
		return rangeCheck(instr, "P", 0, 255)
	case is(instr, "M", 42):
		if err := rangeCheck(instr, "P", 0, 255); err != nil {
			return err
		}
		return rangeCheck(instr, "S", 0, MaxPWM)
	}
	return nil
}

func (s IOState) Clone() IOState {
	out := IOState{Network: s.Network, Firmware: s.Firmware}
	out.Fans = cloneIntMap(s.Fans)
	out.Outputs = cloneIntMap(s.Outputs)
	if s.Firmware.Extra != nil {
		out.Firmware.Extra = make(map[string]string, len(s.Firmware.Extra))
		for k, v := range s.Firmware.Extra {
			out.Firmware.Extra[k] = v
		}
	}
	return out
}

func cloneIntMap(in map[int]int) map[int]int {
	if in == nil {
		return nil
	}
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
