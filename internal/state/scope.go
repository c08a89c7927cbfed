package state

import (
	"fmt"
	"sort"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"go.uber.org/zap"
)

// Scoped pushes the current state, runs fn and pops on every exit path,
// including panics. A failing pop is logged and never replaces fn's error.
func (m *Manager) Scoped(fn func() error) (err error) {
	m.Push()
	defer func() {
		if _, popErr := m.Pop(); popErr != nil {
			m.logger.Error("Failed to restore scoped state",
				zap.Error(popErr),
				zap.NamedError("original", err))
		}
	}()
	return fn()
}

type field struct {
	get func(s *Snapshot) any
	set func(s *Snapshot, v any) error
}

// overridable lists the (domain, field) pairs WithOverride accepts.
var overridable = map[string]map[string]field{
	DomainMotion: {
		"positioning": {
			get: func(s *Snapshot) any { return s.Motion.Positioning },
			set: func(s *Snapshot, v any) error {
				mode, err := toMode(v)
				s.Motion.Positioning = mode
				return err
			},
		},
		"extrusion": {
			get: func(s *Snapshot) any { return s.Motion.Extrusion },
			set: func(s *Snapshot, v any) error {
				mode, err := toMode(v)
				s.Motion.Extrusion = mode
				return err
			},
		},
		"units": {
			get: func(s *Snapshot) any { return s.Motion.Units },
			set: func(s *Snapshot, v any) error {
				switch u := fmt.Sprint(v); Units(u) {
				case Millimeters, Inches:
					s.Motion.Units = Units(u)
					return nil
				}
				return fmt.Errorf("invalid units %v", v)
			},
		},
		"feed_rate": {
			get: func(s *Snapshot) any { return s.Motion.FeedRate },
			set: func(s *Snapshot, v any) error {
				f, err := ToFloat(v)
				if err != nil {
					return err
				}
				s.Motion.FeedRate = f
				return nil
			},
		},
		"plane": {
			get: func(s *Snapshot) any { return s.Motion.Plane },
			set: func(s *Snapshot, v any) error {
				switch p := fmt.Sprint(v); Plane(p) {
				case PlaneXY, PlaneXZ, PlaneYZ:
					s.Motion.Plane = Plane(p)
					return nil
				}
				return fmt.Errorf("invalid plane %v", v)
			},
		},
	},
	DomainTool: {
		"active": {
			get: func(s *Snapshot) any { return s.Tool.Active },
			set: func(s *Snapshot, v any) error {
				f, err := ToFloat(v)
				if err != nil {
					return err
				}
				s.Tool.Active = int(f)
				return nil
			},
		},
	},
	DomainTemperature: {
		"bed_target": {
			get: func(s *Snapshot) any { return s.Temperature.Bed.Target },
			set: func(s *Snapshot, v any) error {
				f, err := ToFloat(v)
				if err != nil {
					return err
				}
				s.Temperature.Bed.Target = f
				return nil
			},
		},
		"chamber_target": {
			get: func(s *Snapshot) any { return s.Temperature.Chamber.Target },
			set: func(s *Snapshot, v any) error {
				f, err := ToFloat(v)
				if err != nil {
					return err
				}
				s.Temperature.Chamber.Target = f
				return nil
			},
		},
	},
	DomainCoordinate: {
		"active": {
			get: func(s *Snapshot) any { return s.Coordinate.Active },
			set: func(s *Snapshot, v any) error {
				name := fmt.Sprint(v)
				if _, ok := WorkSystemIndex(name); !ok {
					return fmt.Errorf("invalid work system %q", name)
				}
				s.Coordinate.Active = name
				return nil
			},
		},
	},
	DomainIO: {
		"network_state": {
			get: func(s *Snapshot) any { return s.IO.Network.State },
			set: func(s *Snapshot, v any) error {
				s.IO.Network.State = fmt.Sprint(v)
				return nil
			},
		},
	},
}

func toMode(v any) (PositioningMode, error) {
	switch mode := PositioningMode(fmt.Sprint(v)); mode {
	case Absolute, Relative:
		return mode, nil
	}
	return "", fmt.Errorf("invalid positioning mode %v", v)
}

// Overridable returns the accepted field names per domain, sorted.
func Overridable() map[string][]string {
	out := make(map[string][]string, len(overridable))
	for d, fields := range overridable {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		out[d] = names
	}
	return out
}

func lookupField(domain, name string) (field, error) {
	fields, ok := overridable[domain]
	if !ok {
		return field{}, types.Errorf(types.KindLookup, "override", "unknown state domain %q", domain)
	}
	f, ok := fields[name]
	if !ok {
		return field{}, types.Errorf(types.KindLookup, "override",
			"domain %q has no overridable field %q", domain, name)
	}
	return f, nil
}

// WithOverride sets one (domain, field) pair for the duration of fn and then
// restores only that field. Other changes made inside fn are kept.
func (m *Manager) WithOverride(domain, name string, value any, fn func() error) (err error) {
	f, err := lookupField(domain, name)
	if err != nil {
		return err
	}
	saved := f.get(&m.current)
	if err := f.set(&m.current, value); err != nil {
		f.set(&m.current, saved)
		return types.Wrap(types.KindParameter, fmt.Sprintf("override %s.%s", domain, name), err)
	}
	defer func() {
		if restoreErr := f.set(&m.current, saved); restoreErr != nil {
			m.logger.Error("Failed to restore overridden field",
				zap.String("domain", domain),
				zap.String("field", name),
				zap.Error(restoreErr),
				zap.NamedError("original", err))
		}
	}()
	return fn()
}

// Field reads one overridable field from the current state.
func (m *Manager) Field(domain, name string) (any, error) {
	f, err := lookupField(domain, name)
	if err != nil {
		return nil, err
	}
	return f.get(&m.current), nil
}
