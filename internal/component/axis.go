package component

import (
	"context"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

type AxisConfig struct {
	Letter   string   `mapstructure:"letter" validate:"omitempty,oneof=X Y Z E U V W"`
	FeedRate float64  `mapstructure:"feed_rate" validate:"gte=0"`
	Min      *float64 `mapstructure:"min"`
	Max      *float64 `mapstructure:"max"`
}

// Axis drives one motion axis.
type Axis struct {
	base
	letter string
	cfg    AxisConfig
}

func NewAxis(id string, raw map[string]any, target Target) (Component, error) {
	_, name, err := SplitID(id)
	if err != nil {
		return nil, err
	}
	var cfg AxisConfig
	if err := decodeConfig(id, raw, &cfg); err != nil {
		return nil, err
	}
	letter := strings.ToUpper(cfg.Letter)
	if letter == "" {
		letter = strings.ToUpper(name)
	}
	if err := validate.Var(letter, "oneof=X Y Z E U V W"); err != nil {
		return nil, types.Errorf(types.KindConfiguration, id, "unknown axis %q", letter)
	}
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min > *cfg.Max {
		return nil, types.Errorf(types.KindConfiguration, id, "min %g exceeds max %g", *cfg.Min, *cfg.Max)
	}

	a := &Axis{base: newBase(id, "axis", target), letter: letter, cfg: cfg}
	a.define("move", "Move to an absolute position", true, []string{"G0"}, a.move)
	a.define("home", "Home the axis", false, []string{"G28"}, a.home)
	a.define("relative_move", "Move by a distance from the current position", true, []string{"G91", "G0", "G90"}, a.relativeMove)
	return a, nil
}

func (a *Axis) Letter() string { return a.letter }

func (a *Axis) moveParams(v float64) []instruction.Param {
	params := []instruction.Param{instruction.P(a.letter, v)}
	if a.cfg.FeedRate > 0 {
		params = append(params, instruction.P("F", a.cfg.FeedRate))
	}
	return params
}

func (a *Axis) move(ctx context.Context, value any) ([]*instruction.Result, error) {
	v, err := a.number("move", value)
	if err != nil {
		return nil, err
	}
	if a.cfg.Min != nil && v < *a.cfg.Min || a.cfg.Max != nil && v > *a.cfg.Max {
		return nil, types.Errorf(types.KindParameter, a.id, "position %g outside soft limits", v)
	}
	return a.send(ctx, do("G0", a.moveParams(v)...))
}

func (a *Axis) home(ctx context.Context, _ any) ([]*instruction.Result, error) {
	return a.send(ctx, do("G28", instruction.Flag(a.letter)))
}

// relativeMove brackets the move with G91/G90 unless the session already
// positions relatively, so the caller's mode survives the action.
func (a *Axis) relativeMove(ctx context.Context, value any) ([]*instruction.Result, error) {
	v, err := a.number("relative_move", value)
	if err != nil {
		return nil, err
	}
	if p, ok := a.target.(Positioner); ok && p.Positioning() == state.Relative {
		return a.send(ctx, do("G0", a.moveParams(v)...))
	}
	return a.send(ctx,
		do("G91"),
		do("G0", a.moveParams(v)...),
		do("G90"),
	)
}
