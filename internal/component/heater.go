package component

import (
	"context"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
)

type HeaterConfig struct {
	Kind    string  `mapstructure:"kind" validate:"omitempty,oneof=bed chamber"`
	MaxTemp float64 `mapstructure:"max_temp" validate:"gte=0,lte=500"`
}

// heaterCodes are the set and wait codes per heater kind.
var heaterCodes = map[string][2]string{
	"bed":     {"M140", "M190"},
	"chamber": {"M141", "M191"},
}

// Heater is the bed or chamber heater.
type Heater struct {
	base
	kind    string
	maxTemp float64
}

// NewHeater builds a heater. The kind defaults to the id, so heater:bed needs
// no config.
func NewHeater(id string, raw map[string]any, target Target) (Component, error) {
	_, name, err := SplitID(id)
	if err != nil {
		return nil, err
	}
	var cfg HeaterConfig
	if err := decodeConfig(id, raw, &cfg); err != nil {
		return nil, err
	}
	kind := cfg.Kind
	if kind == "" {
		kind = name
	}
	codes, ok := heaterCodes[kind]
	if !ok {
		return nil, configError(id, "unknown heater kind %q, expected bed or chamber", kind)
	}
	maxTemp := cfg.MaxTemp
	if maxTemp == 0 {
		maxTemp = state.MaxTemperature
	}

	h := &Heater{base: newBase(id, "heater", target), kind: kind, maxTemp: maxTemp}
	set, wait := codes[0], codes[1]
	h.define("set_temp", "Set the heater target", true, []string{set}, func(ctx context.Context, value any) ([]*instruction.Result, error) {
		v, err := h.bounded("set_temp", value, 0, h.maxTemp)
		if err != nil {
			return nil, err
		}
		return h.send(ctx, do(set, instruction.P("S", v)))
	})
	h.define("wait_temp", "Set the heater target and wait until reached", true, []string{wait}, func(ctx context.Context, value any) ([]*instruction.Result, error) {
		v, err := h.bounded("wait_temp", value, 0, h.maxTemp)
		if err != nil {
			return nil, err
		}
		return h.send(ctx, do(wait, instruction.P("S", v)))
	})
	h.define("off", "Turn the heater off", false, []string{set}, func(ctx context.Context, _ any) ([]*instruction.Result, error) {
		return h.send(ctx, do(set, instruction.P("S", 0)))
	})
	return h, nil
}

func (h *Heater) Kind() string { return h.kind }
