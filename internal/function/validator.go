package function

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

type Severity string

const (
	SevError   Severity = "error"
	SevWarning Severity = "warning"
)

// Issue is one problem found in a function definition. StepIndex is -1 for
// problems that are not tied to a step.
type Issue struct {
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Function  string   `json:"function"`
	Operation string   `json:"operation,omitempty"`
	StepIndex int      `json:"step_index"`
	Component string   `json:"component,omitempty"`
	Action    string   `json:"action,omitempty"`
	Hint      string   `json:"hint,omitempty"`
	Cause     error    `json:"-"`
}

func (i Issue) Error() string {
	loc := i.Function
	if i.Operation != "" {
		loc += "." + i.Operation
	}
	if i.StepIndex >= 0 {
		loc = fmt.Sprintf("%s step %d", loc, i.StepIndex)
	}
	return fmt.Sprintf("%s: %s: %s", i.Code, loc, i.Message)
}

func (i Issue) Unwrap() error { return i.Cause }

type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err combines the report errors, nil when the report is valid.
func (r Report) Err() error {
	var err error
	for _, i := range r.Errors {
		err = multierr.Append(err, i)
	}
	return err
}

// Validate checks the function against the components it can reach.
// Problems are collected, never returned early.
func (f *Function) Validate() Report {
	rep := Report{}

	if len(f.def.Operations) == 0 {
		rep.addWarning(Issue{
			Code:      "FUNCTION_001",
			Message:   "Function defines no operations",
			Function:  f.name,
			StepIndex: -1,
		})
	}

	declared := make(map[string]bool, len(f.def.Components))
	for _, id := range f.def.Components {
		declared[id] = true
		if _, err := f.components.Get(id); err != nil {
			rep.addError(Issue{
				Code:      "FUNCTION_010",
				Message:   fmt.Sprintf("Declared component %q not found", id),
				Function:  f.name,
				StepIndex: -1,
				Component: id,
				Cause:     err,
			})
		}
	}

	for _, op := range f.def.OperationNames() {
		steps := f.def.Operations[op]
		if len(steps) == 0 {
			rep.addWarning(Issue{
				Code:      "OPERATION_001",
				Message:   "Operation has no steps",
				Function:  f.name,
				Operation: op,
				StepIndex: -1,
			})
		}
		for i, step := range steps {
			f.validateStep(&rep, op, i, step, declared)
		}
	}

	rep.finalize()
	return rep
}

func (f *Function) validateStep(rep *Report, op string, idx int, step Step, declared map[string]bool) {
	action := step.ActionName()
	issue := func(code, msg string) Issue {
		return Issue{
			Code:      code,
			Message:   msg,
			Function:  f.name,
			Operation: op,
			StepIndex: idx,
			Component: step.Component,
			Action:    action,
		}
	}

	if step.Component == "" {
		rep.addError(issue("STEP_001", "Step has no component"))
		return
	}
	if len(declared) > 0 && !declared[step.Component] {
		i := issue("STEP_004", "Component is not listed in the function's components")
		i.Hint = "add it to components"
		rep.addWarning(i)
	}

	c, err := f.components.Get(step.Component)
	if err != nil {
		i := issue("STEP_002", fmt.Sprintf("Component %q not found", step.Component))
		i.Cause = err
		rep.addError(i)
		return
	}
	info, ok := c.ActionInfo(action)
	if !ok {
		i := issue("STEP_003", fmt.Sprintf("Component %s does not support action %q", step.Component, action))
		i.Hint = fmt.Sprintf("supported actions: %v", c.Actions())
		rep.addError(i)
		return
	}

	if info.TakesValue && step.Value == nil {
		rep.addError(issue("STEP_005", fmt.Sprintf("Action %q needs a value", action)))
	}
	if !info.TakesValue && step.Value != nil {
		rep.addWarning(issue("STEP_006", fmt.Sprintf("Action %q ignores its value", action)))
	}

	// Dry-run the template with placeholder arguments.
	if n := Arity(step.Value); n > 0 {
		args := make([]any, n)
		for k := range args {
			args[k] = 1
		}
		if _, err := Resolve(f.name+"."+op, step.Value, args); err != nil {
			i := issue("STEP_007", fmt.Sprintf("Value %v cannot be resolved", step.Value))
			i.Cause = err
			rep.addError(i)
		}
	}
}

func (r *Report) addError(i Issue) {
	if i.Severity == "" {
		i.Severity = SevError
	}
	r.Errors = append(r.Errors, i)
}

func (r *Report) addWarning(i Issue) {
	if i.Severity == "" {
		i.Severity = SevWarning
	}
	r.Warnings = append(r.Warnings, i)
}

func (r *Report) finalize() {
	sortIssues(r.Errors)
	sortIssues(r.Warnings)
	r.Valid = len(r.Errors) == 0
}

func sortIssues(list []Issue) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		if a.StepIndex != b.StepIndex {
			return a.StepIndex < b.StepIndex
		}
		return a.Code < b.Code
	})
}
