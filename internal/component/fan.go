package component

import (
	"context"
	"strconv"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
)

type FanConfig struct {
	Index *int `mapstructure:"index" validate:"omitempty,gte=0,lte=255"`
}

type Fan struct {
	base
	index int
}

// NewFan builds a fan. The index defaults to the numeric part of the id.
func NewFan(id string, raw map[string]any, target Target) (Component, error) {
	index, err := indexFor(id, func() (*int, error) {
		var cfg FanConfig
		err := decodeConfig(id, raw, &cfg)
		return cfg.Index, err
	})
	if err != nil {
		return nil, err
	}

	f := &Fan{base: newBase(id, "fan", target), index: index}
	f.define("set", "Set the fan speed (0-255)", true, []string{"M106"}, f.set)
	f.define("on", "Run the fan at full speed", false, []string{"M106"}, f.on)
	f.define("off", "Stop the fan", false, []string{"M107"}, f.off)
	return f, nil
}

func (f *Fan) set(ctx context.Context, value any) ([]*instruction.Result, error) {
	v, err := f.bounded("set", value, 0, state.MaxPWM)
	if err != nil {
		return nil, err
	}
	return f.send(ctx, do("M106", instruction.P("P", f.index), instruction.P("S", v)))
}

func (f *Fan) on(ctx context.Context, _ any) ([]*instruction.Result, error) {
	return f.send(ctx, do("M106", instruction.P("P", f.index), instruction.P("S", int(state.MaxPWM))))
}

func (f *Fan) off(ctx context.Context, _ any) ([]*instruction.Result, error) {
	return f.send(ctx, do("M107", instruction.P("P", f.index)))
}

// indexFor resolves a numeric index from config, falling back to the id.
func indexFor(id string, decode func() (*int, error)) (int, error) {
	_, name, err := SplitID(id)
	if err != nil {
		return 0, err
	}
	configured, err := decode()
	if err != nil {
		return 0, err
	}
	if configured != nil {
		return *configured, nil
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, configError(id, "index is required when the id is not numeric")
	}
	return n, nil
}
