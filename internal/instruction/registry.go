package instruction

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// Factory builds an instruction from its parameters.
type Factory func(params []Param, comment string) (Instruction, error)

// Registry maps codes ("G1", "M104", "T0") to factories. It is populated once
// at startup and passed to every consumer.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a code twice fails.
func (r *Registry) Register(code string, f Factory) error {
	codeType, number, err := ParseCode(code)
	if err != nil {
		return err
	}
	key := codeKey(codeType, number)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return types.Errorf(types.KindConfiguration, "register", "instruction %s already registered", key)
	}
	r.factories[key] = f
	return nil
}

// New builds the instruction registered under code.
func (r *Registry) New(code string, params []Param, comment string) (Instruction, error) {
	codeType, number, err := ParseCode(code)
	if err != nil {
		return nil, err
	}
	key := codeKey(codeType, number)

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.KindLookup, "instruction", "unknown instruction code %s", key)
	}
	if err := checkWords(key, params, comment); err != nil {
		return nil, err
	}
	return f(params, comment)
}

// checkWords keeps an instruction on one line: single-letter parameters,
// finite numbers, no line breaks in values or the comment.
func checkWords(code string, params []Param, comment string) error {
	for _, p := range params {
		if len(p.Letter) != 1 || p.Letter[0] < 'A' || p.Letter[0] > 'Z' {
			return types.Errorf(types.KindParameter, code, "invalid parameter letter %q", p.Letter)
		}
		switch v := p.Value.(type) {
		case nil:
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return types.Errorf(types.KindParameter, code, "parameter %s is not a finite number", p.Letter)
			}
		case float32:
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return types.Errorf(types.KindParameter, code, "parameter %s is not a finite number", p.Letter)
			}
		default:
			if strings.ContainsAny(FormatValue(v), "\r\n") {
				return types.Errorf(types.KindParameter, code, "parameter %s contains a line break", p.Letter)
			}
		}
	}
	if strings.ContainsAny(comment, "\r\n") {
		return types.Errorf(types.KindParameter, code, "comment contains a line break")
	}
	return nil
}

func (r *Registry) Has(code string) bool {
	codeType, number, err := ParseCode(code)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[codeKey(codeType, number)]
	return ok
}

// Codes lists the registered codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func codeKey(codeType string, number int) string {
	return strings.ToUpper(codeType) + strconv.Itoa(number)
}
