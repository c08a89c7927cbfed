package component

import (
	"sort"
	"sync"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// Constructor builds a component of one type from its id and raw config.
type Constructor func(id string, config map[string]any, target Target) (Component, error)

// Registry maps component ids to instances and type names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	components   map[string]Component
}

// NewRegistry returns a registry that knows the axis, fan, tool and heater
// types.
func NewRegistry() *Registry {
	r := &Registry{
		constructors: make(map[string]Constructor),
		components:   make(map[string]Component),
	}
	r.constructors["axis"] = NewAxis
	r.constructors["fan"] = NewFan
	r.constructors["tool"] = NewTool
	r.constructors["heater"] = NewHeater
	return r
}

// RegisterType adds a component family.
func (r *Registry) RegisterType(name string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return types.Errorf(types.KindConfiguration, "register type", "component type %q already registered", name)
	}
	r.constructors[name] = c
	return nil
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs the component for id and registers it.
func (r *Registry) Build(id string, config map[string]any, target Target) (Component, error) {
	typ, _, err := SplitID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	ctor, ok := r.constructors[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.KindConfiguration, id, "unknown component type %q", typ)
	}

	c, err := ctor(id, config, target)
	if err != nil {
		return nil, err
	}
	if err := r.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add registers an already built component.
func (r *Registry) Add(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[c.ID()]; exists {
		return types.Errorf(types.KindConfiguration, c.ID(), "component %s already registered", c.ID())
	}
	r.components[c.ID()] = c
	return nil
}

func (r *Registry) Get(id string) (Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	if !ok {
		return nil, types.Errorf(types.KindLookup, "component", "unknown component %q", id)
	}
	return c, nil
}

// IDs lists registered component ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.components))
	for id := range r.components {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}
