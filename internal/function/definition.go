package function

import (
	"sort"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
)

// Step is one component action inside an operation.
type Step struct {
	Component   string `yaml:"component" json:"component"`
	Action      string `yaml:"action,omitempty" json:"action,omitempty"`
	Value       any    `yaml:"value,omitempty" json:"value,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ActionName is the step action, defaulting to "set".
func (s Step) ActionName() string {
	if a := strings.TrimSpace(s.Action); a != "" {
		return a
	}
	return component.DefaultAction
}

// Definition is the declarative form of a composite function.
type Definition struct {
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Components  []string          `yaml:"components" json:"components"`
	Operations  map[string][]Step `yaml:"operations" json:"operations"`
}

// Clone returns a deep copy. Map and slice step values are copied too.
func (d Definition) Clone() Definition {
	out := Definition{Description: d.Description}
	if d.Components != nil {
		out.Components = append([]string(nil), d.Components...)
	}
	if d.Operations != nil {
		out.Operations = make(map[string][]Step, len(d.Operations))
		for op, steps := range d.Operations {
			cp := make([]Step, len(steps))
			for i, st := range steps {
				st.Value = cloneValue(st.Value)
				cp[i] = st
			}
			out.Operations[op] = cp
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	}
	return v
}

// OperationNames returns the operation names, sorted.
func (d Definition) OperationNames() []string {
	out := make([]string, 0, len(d.Operations))
	for name := range d.Operations {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// arity is the argument count an operation needs, from its templates.
func arity(steps []Step) int {
	n := 0
	for _, s := range steps {
		if a := Arity(s.Value); a > n {
			n = a
		}
	}
	return n
}
