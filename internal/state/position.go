package state

// Position is a point in machine space. E is the optional extruder offset.
type Position struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z float64  `json:"z"`
	E *float64 `json:"e,omitempty"`
}

// Clone returns a copy that shares no memory with p.
func (p Position) Clone() Position {
	out := p
	if p.E != nil {
		e := *p.E
		out.E = &e
	}
	return out
}

// Axis returns the value of a named axis (X, Y, Z, E).
func (p Position) Axis(name string) (float64, bool) {
	switch name {
	case "X":
		return p.X, true
	case "Y":
		return p.Y, true
	case "Z":
		return p.Z, true
	case "E":
		if p.E == nil {
			return 0, false
		}
		return *p.E, true
	}
	return 0, false
}

// SetAxis writes a named axis and reports whether the axis is known.
func (p *Position) SetAxis(name string, v float64) bool {
	switch name {
	case "X":
		p.X = v
	case "Y":
		p.Y = v
	case "Z":
		p.Z = v
	case "E":
		p.E = &v
	default:
		return false
	}
	return true
}

// Add returns p + o. E is present when either side carries it.
func (p Position) Add(o Position) Position {
	out := Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
	if p.E != nil || o.E != nil {
		var e float64
		if p.E != nil {
			e += *p.E
		}
		if o.E != nil {
			e += *o.E
		}
		out.E = &e
	}
	return out
}

// Float64 returns a pointer to v, for optional fields like Position.E.
func Float64(v float64) *float64 {
	return &v
}
