package function

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/component"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"go.uber.org/zap"
)

// Components resolves component ids. component.Registry implements it.
type Components interface {
	Get(id string) (component.Component, error)
}

// Operation is an operation bound to its function.
type Operation func(ctx context.Context, args ...any) ([]*component.Result, error)

// StepError reports which step of an operation failed. Steps before it have
// already run and are not undone.
type StepError struct {
	Function  string
	Operation string
	Index     int
	Step      Step
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s.%s step %d (%s %s): %v",
		e.Function, e.Operation, e.Index, e.Step.Component, e.Step.ActionName(), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Function is a named group of operations over components. It is immutable
// once defined.
type Function struct {
	name       string
	def        Definition
	arity      map[string]int
	components Components

	logger   *zap.Logger
	metrics  *metrics.Metrics
	streamer *events.Streamer
}

func (f *Function) Name() string           { return f.name }
func (f *Function) Description() string    { return f.def.Description }
func (f *Function) Definition() Definition { return f.def.Clone() }
func (f *Function) Operations() []string   { return f.def.OperationNames() }

func (f *Function) HasOperation(op string) bool {
	_, ok := f.def.Operations[op]
	return ok
}

// Arity returns how many arguments op needs.
func (f *Function) Arity(op string) (int, bool) {
	n, ok := f.arity[op]
	return n, ok
}

// Operation returns op as a callable.
func (f *Function) Operation(op string) (Operation, error) {
	if !f.HasOperation(op) {
		return nil, f.unknown(op)
	}
	return func(ctx context.Context, args ...any) ([]*component.Result, error) {
		return f.Invoke(ctx, op, args...)
	}, nil
}

func (f *Function) unknown(op string) error {
	return types.Errorf(types.KindLookup, f.name, "function %s has no operation %q", f.name, op)
}

// Invoke runs the steps of op in order. The first failing step stops the
// operation; its error is a *StepError.
func (f *Function) Invoke(ctx context.Context, op string, args ...any) ([]*component.Result, error) {
	steps, ok := f.def.Operations[op]
	if !ok {
		return nil, f.unknown(op)
	}
	qualified := f.name + "." + op
	if n := f.arity[op]; len(args) < n {
		return nil, types.Errorf(types.KindParameter, qualified,
			"operation %s needs %d argument(s), got %d", qualified, n, len(args))
	}

	start := time.Now()
	f.streamer.Publish(events.FunctionStarted, map[string]any{
		"function":  f.name,
		"operation": op,
		"args":      args,
	})

	results := make([]*component.Result, 0, len(steps))
	for i, step := range steps {
		res, err := f.runStep(ctx, qualified, i, step, args)
		if err != nil {
			stepErr := &StepError{Function: f.name, Operation: op, Index: i, Step: step, Err: err}
			f.metrics.RecordFunction(f.name, op, "error", time.Since(start))
			f.streamer.Publish(events.FunctionFailed, map[string]any{
				"function":   f.name,
				"operation":  op,
				"step_index": i,
				"error":      err.Error(),
			})
			f.logger.Error("Operation failed",
				zap.String("function", f.name),
				zap.String("operation", op),
				zap.Int("step_index", i),
				zap.Error(err))
			return results, stepErr
		}
		results = append(results, res)
	}

	f.metrics.RecordFunction(f.name, op, "ok", time.Since(start))
	f.streamer.Publish(events.FunctionCompleted, map[string]any{
		"function":  f.name,
		"operation": op,
		"steps":     len(results),
	})
	f.logger.Info("Operation completed",
		zap.String("function", f.name),
		zap.String("operation", op),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

func (f *Function) runStep(ctx context.Context, qualified string, i int, step Step, args []any) (*component.Result, error) {
	action := step.ActionName()
	payload := map[string]any{
		"function":   f.name,
		"operation":  qualified,
		"step_index": i,
		"component":  step.Component,
		"action":     action,
	}
	f.streamer.Publish(events.StepStarted, payload)

	fail := func(err error) (*component.Result, error) {
		f.streamer.Publish(events.StepFailed, withField(payload, "error", err.Error()))
		return nil, err
	}

	value, err := Resolve(qualified, step.Value, args)
	if err != nil {
		return fail(err)
	}
	c, err := f.components.Get(step.Component)
	if err != nil {
		return fail(err)
	}
	res, err := c.Invoke(ctx, action, value)
	if err != nil {
		return fail(err)
	}

	f.streamer.Publish(events.StepCompleted, withField(payload, "value", value))
	return res, nil
}

func withField(m map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}
