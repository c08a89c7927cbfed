package component

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Target executes instructions on behalf of components. The machine
// controller is the production Target.
type Target interface {
	Execute(ctx context.Context, code string, params []instruction.Param, comment string) (*instruction.Result, error)
}

// Positioner is implemented by targets that track the positioning mode.
// Targets without it are assumed to position absolutely.
type Positioner interface {
	Positioning() state.PositioningMode
}

// DefaultAction is used by steps that do not name an action.
const DefaultAction = "set"

type ActionInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Codes       []string `json:"codes"`
	TakesValue  bool     `json:"takes_value"`
}

// Result is what one component action produced.
type Result struct {
	Component    string                `json:"component"`
	Action       string                `json:"action"`
	Value        any                   `json:"value,omitempty"`
	Instructions []*instruction.Result `json:"instructions"`
}

type Component interface {
	ID() string
	Type() string
	Actions() []string
	ActionInfo(action string) (ActionInfo, bool)
	Supports(action string) bool
	Invoke(ctx context.Context, action string, value any) (*Result, error)
}

type actionFunc func(ctx context.Context, value any) ([]*instruction.Result, error)

type action struct {
	info ActionInfo
	run  actionFunc
}

// base implements Component over a table of actions.
type base struct {
	id      string
	typ     string
	target  Target
	actions map[string]action
}

func newBase(id, typ string, target Target) base {
	return base{id: id, typ: typ, target: target, actions: make(map[string]action)}
}

func (b *base) define(name, description string, takesValue bool, codes []string, run actionFunc) {
	b.actions[name] = action{
		info: ActionInfo{Name: name, Description: description, Codes: codes, TakesValue: takesValue},
		run:  run,
	}
}

func (b *base) ID() string   { return b.id }
func (b *base) Type() string { return b.typ }

func (b *base) Actions() []string {
	out := make([]string, 0, len(b.actions))
	for name := range b.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (b *base) ActionInfo(name string) (ActionInfo, bool) {
	a, ok := b.actions[name]
	return a.info, ok
}

func (b *base) Supports(name string) bool {
	_, ok := b.actions[name]
	return ok
}

func (b *base) Invoke(ctx context.Context, name string, value any) (*Result, error) {
	a, ok := b.actions[name]
	if !ok {
		return nil, types.Errorf(types.KindUnsupportedOperation, b.id,
			"component %s does not support action %q", b.id, name)
	}
	if a.info.TakesValue && value == nil {
		return nil, types.Errorf(types.KindParameter, b.id, "action %q needs a value", name)
	}
	results, err := a.run(ctx, value)
	if err != nil {
		return nil, err
	}
	return &Result{Component: b.id, Action: name, Value: value, Instructions: results}, nil
}

// send runs instructions in order and stops at the first failure.
func (b *base) send(ctx context.Context, steps ...step) ([]*instruction.Result, error) {
	results := make([]*instruction.Result, 0, len(steps))
	for _, s := range steps {
		res, err := b.target.Execute(ctx, s.code, s.params, "")
		if err != nil {
			return results, fmt.Errorf("%s: %w", b.id, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type step struct {
	code   string
	params []instruction.Param
}

func do(code string, params ...instruction.Param) step {
	return step{code: code, params: params}
}

// number converts an action value to float64.
func (b *base) number(action string, value any) (float64, error) {
	v, err := state.ToFloat(value)
	if err != nil {
		return 0, types.Errorf(types.KindParameter, b.id, "action %q: %v", action, err)
	}
	return v, nil
}

func (b *base) bounded(action string, value any, lo, hi float64) (float64, error) {
	v, err := b.number(action, value)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, types.Errorf(types.KindParameter, b.id,
			"action %q: value %g out of range [%g, %g]", action, v, lo, hi)
	}
	return v, nil
}

// SplitID splits "axis:X" into ("axis", "X").
func SplitID(id string) (string, string, error) {
	typ, name, ok := strings.Cut(id, ":")
	if !ok || typ == "" || name == "" {
		return "", "", types.Errorf(types.KindConfiguration, "component", "invalid component id %q, expected type:id", id)
	}
	return typ, name, nil
}

func configError(id, format string, args ...any) error {
	return types.Errorf(types.KindConfiguration, id, format, args...)
}

var validate = validator.New()

// decodeConfig turns a raw config map into a typed, validated config.
func decodeConfig(id string, raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return types.Wrap(types.KindConfiguration, id, fmt.Errorf("failed to decode config: %w", err))
	}
	if err := validate.Struct(out); err != nil {
		return types.Wrap(types.KindConfiguration, id, fmt.Errorf("invalid config: %w", err))
	}
	return nil
}
