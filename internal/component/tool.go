package component

import (
	"context"
	"strconv"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
)

type ToolConfig struct {
	Index   *int    `mapstructure:"index" validate:"omitempty,gte=0,lt=16"`
	MaxTemp float64 `mapstructure:"max_temp" validate:"gte=0,lte=500"`
}

// Tool is one tool head with its own heater.
type Tool struct {
	base
	index   int
	maxTemp float64
}

func NewTool(id string, raw map[string]any, target Target) (Component, error) {
	var cfg ToolConfig
	index, err := indexFor(id, func() (*int, error) {
		err := decodeConfig(id, raw, &cfg)
		return cfg.Index, err
	})
	if err != nil {
		return nil, err
	}
	if index >= state.MaxTools {
		return nil, configError(id, "tool index %d out of range [0, %d)", index, state.MaxTools)
	}
	maxTemp := cfg.MaxTemp
	if maxTemp == 0 {
		maxTemp = state.MaxTemperature
	}

	t := &Tool{base: newBase(id, "tool", target), index: index, maxTemp: maxTemp}
	t.define("select", "Make this the active tool", false, []string{"T"}, t.selectTool)
	t.define("set_temp", "Set the heater target", true, []string{"M104"}, t.setTemp)
	t.define("wait_temp", "Set the heater target and wait until reached", true, []string{"M109"}, t.waitTemp)
	return t, nil
}

func (t *Tool) Index() int { return t.index }

func (t *Tool) selectTool(ctx context.Context, _ any) ([]*instruction.Result, error) {
	return t.send(ctx, do("T"+strconv.Itoa(t.index)))
}

func (t *Tool) setTemp(ctx context.Context, value any) ([]*instruction.Result, error) {
	v, err := t.bounded("set_temp", value, 0, t.maxTemp)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, do("M104", instruction.P("T", t.index), instruction.P("S", v)))
}

func (t *Tool) waitTemp(ctx context.Context, value any) ([]*instruction.Result, error) {
	v, err := t.bounded("wait_temp", value, 0, t.maxTemp)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, do("M109", instruction.P("T", t.index), instruction.P("S", v)))
}
