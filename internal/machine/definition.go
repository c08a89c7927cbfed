package machine

import (
	"sort"

	"github.com/KevinKickass/OpenGCodeCore/internal/function"
)

// Definition is the declarative description of a machine: its components and
// the composite functions built over them.
type Definition struct {
	Name        string                         `yaml:"name,omitempty" json:"name,omitempty"`
	Description string                         `yaml:"description,omitempty" json:"description,omitempty"`
	Include     []string                       `yaml:"include,omitempty" json:"include,omitempty"`
	Components  map[string]map[string]any      `yaml:"components,omitempty" json:"components,omitempty"`
	Functions   map[string]function.Definition `yaml:"functions,omitempty" json:"functions,omitempty"`
}

func (d *Definition) ComponentIDs() []string {
	return sortedKeys(d.Components)
}

func (d *Definition) FunctionNames() []string {
	return sortedKeys(d.Functions)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
