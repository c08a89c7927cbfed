package instruction

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

// Param is one parameter word. A nil Value is a flag and encodes as the bare
// letter (G28 X).
type Param struct {
	Letter string `json:"letter"`
	Value  any    `json:"value,omitempty"`
}

func P(letter string, value any) Param {
	return Param{Letter: strings.ToUpper(letter), Value: value}
}

// Flag is a parameter without a value.
func Flag(letter string) Param {
	return Param{Letter: strings.ToUpper(letter)}
}

// Instruction is one protocol command. Capabilities are expressed by the
// optional interfaces in capability.go.
type Instruction interface {
	state.Instruction
	Code() string
	Params() []Param
	Comment() string
}

// Base carries the identity and parameters of an instruction. Concrete
// instructions embed it and add capabilities.
type Base struct {
	codeType string
	number   int
	params   []Param
	comment  string
}

func NewBase(codeType string, number int, params []Param, comment string) Base {
	cp := make([]Param, len(params))
	copy(cp, params)
	return Base{codeType: strings.ToUpper(codeType), number: number, params: cp, comment: comment}
}

func (b Base) CodeType() string { return b.codeType }
func (b Base) CodeNumber() int  { return b.number }
func (b Base) Comment() string  { return b.comment }

func (b Base) Code() string {
	return b.codeType + strconv.Itoa(b.number)
}

// Params returns a copy in declaration order.
func (b Base) Params() []Param {
	cp := make([]Param, len(b.params))
	copy(cp, b.params)
	return cp
}

// Param returns the first value declared for letter.
func (b Base) Param(letter string) (any, bool) {
	letter = strings.ToUpper(letter)
	for _, p := range b.params {
		if p.Letter == letter {
			return p.Value, true
		}
	}
	return nil, false
}

func (b Base) Has(letter string) bool {
	_, ok := b.Param(letter)
	return ok
}

// ParseCode splits "G1" into ("G", 1).
func ParseCode(code string) (string, int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 {
		return "", 0, types.Errorf(types.KindLookup, "parse code", "invalid instruction code %q", code)
	}
	n, err := strconv.Atoi(code[1:])
	if err != nil || n < 0 {
		return "", 0, types.Errorf(types.KindLookup, "parse code", "invalid instruction code %q", code)
	}
	return code[:1], n, nil
}

// ParseParam reads "X=10", "X10" or a bare "X" flag. Numeric values become
// float64, everything else stays a string.
func ParseParam(word string) (Param, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Param{}, fmt.Errorf("empty parameter")
	}
	letter := strings.ToUpper(word[:1])
	if letter[0] < 'A' || letter[0] > 'Z' {
		return Param{}, fmt.Errorf("invalid parameter %q", word)
	}
	raw := strings.TrimPrefix(word[1:], "=")
	if raw == "" {
		return Flag(letter), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Param{}, types.Errorf(types.KindParameter, "parse parameter", "parameter %s is not a finite number", letter)
		}
		return P(letter, f), nil
	}
	return P(letter, strings.Trim(raw, `"`)), nil
}
