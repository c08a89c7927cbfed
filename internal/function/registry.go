package function

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"go.uber.org/zap"
)

type Registry struct {
	mu        sync.RWMutex
	functions map[string]*Function

	components Components
	logger     *zap.Logger
	metrics    *metrics.Metrics
	streamer   *events.Streamer
}

func NewRegistry(components Components, logger *zap.Logger, m *metrics.Metrics, streamer *events.Streamer) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		functions:  make(map[string]*Function),
		components: components,
		logger:     logger,
		metrics:    m,
		streamer:   streamer,
	}
}

// Define builds a function from its definition. Names are unique and may
// not contain a dot.
func (r *Registry) Define(name string, def Definition) (*Function, error) {
	if name == "" || strings.Contains(name, ".") {
		return nil, types.Errorf(types.KindConfiguration, "function", "invalid function name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.functions[name]; exists {
		return nil, types.Errorf(types.KindConfiguration, name, "function %s already defined", name)
	}
	def = def.Clone()

	f := &Function{
		name:       name,
		def:        def,
		arity:      make(map[string]int, len(def.Operations)),
		components: r.components,
		logger:     r.logger.With(zap.String("function", name)),
		metrics:    r.metrics,
		streamer:   r.streamer,
	}
	for op, steps := range def.Operations {
		f.arity[op] = arity(steps)
	}
	r.functions[name] = f

	r.logger.Debug("Function defined",
		zap.String("function", name),
		zap.Strings("operations", def.OperationNames()))
	return f, nil
}

func (r *Registry) Get(name string) (*Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.functions[name]
	if !ok {
		return nil, types.Errorf(types.KindLookup, name, "function %s not found", name)
	}
	return f, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.functions))
	for name := range r.functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.functions)
}

// Call invokes a qualified operation such as "print_start.heat_and_move".
func (r *Registry) Call(ctx context.Context, qualified string, args ...any) ([]*component.Result, error) {
	name, op, ok := strings.Cut(qualified, ".")
	if !ok || op == "" {
		return nil, types.Errorf(types.KindLookup, qualified, "expected function.operation, got %q", qualified)
	}
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return f.Invoke(ctx, op, args...)
}

// Reports validates every function.
func (r *Registry) Reports() map[string]Report {
	out := make(map[string]Report)
	for _, name := range r.Names() {
		f, err := r.Get(name)
		if err != nil {
			continue
		}
		out[name] = f.Validate()
	}
	return out
}

// Validate returns the error issues of every function that has any.
func (r *Registry) Validate() map[string][]Issue {
	out := make(map[string][]Issue)
	for name, rep := range r.Reports() {
		if len(rep.Errors) > 0 {
			out[name] = rep.Errors
		}
	}
	return out
}
