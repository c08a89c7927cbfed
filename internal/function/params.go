package function

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
)

var (
	paramToken = regexp.MustCompile(`\bPARAM(\d*)\b`)
	exprOnly   = regexp.MustCompile(`^[\d.\s+\-*/()eE]+$`)
)

const (
	paramFirst  = "PARAM"
	paramSecond = "PARAM2"
)

// paramIndex maps a PARAM token suffix to a zero-based argument index.
// PARAM and PARAM1 both mean the first argument.
func paramIndex(suffix string) int {
	if suffix == "" {
		return 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0
	}
	return n - 1
}

// Arity is the number of arguments a step value template consumes.
func Arity(value any) int {
	s, ok := value.(string)
	if !ok {
		return 0
	}
	highest := 0
	for _, m := range paramToken.FindAllStringSubmatch(s, -1) {
		if n := paramIndex(m[1]) + 1; n > highest {
			highest = n
		}
	}
	return highest
}

// Resolve substitutes call arguments into a step value.
//
//	"PARAM"          first argument, unchanged
//	"PARAM2"         second argument, unchanged
//	"PARAM2 <expr>"  second argument followed by <expr>, evaluated
//	anything else    PARAMn tokens replaced textually; numeric results are
//	                 returned as float64, arithmetic is evaluated
//
// Non-string values are literals and returned as is.
func Resolve(op string, value any, args []any) (any, error) {
	tmpl, ok := value.(string)
	if !ok {
		return finite(op, value)
	}
	s := strings.TrimSpace(tmpl)

	switch {
	case s == paramFirst:
		if err := need(op, args, 1); err != nil {
			return nil, err
		}
		return finite(op, args[0])
	case s == paramSecond:
		if err := need(op, args, 2); err != nil {
			return nil, err
		}
		return finite(op, args[1])
	case strings.HasPrefix(s, paramSecond+" "):
		if err := need(op, args, 2); err != nil {
			return nil, err
		}
		src := stringify(args[1]) + s[len(paramSecond):]
		v, err := Eval(src)
		if err != nil {
			return nil, types.Wrap(types.KindParameter, op, err)
		}
		return v, nil
	}

	var missing error
	substituted := paramToken.ReplaceAllStringFunc(s, func(tok string) string {
		idx := paramIndex(paramToken.FindStringSubmatch(tok)[1])
		if idx >= len(args) {
			if missing == nil {
				missing = need(op, args, idx+1)
			}
			return tok
		}
		return stringify(args[idx])
	})
	if missing != nil {
		return nil, missing
	}

	if f, err := strconv.ParseFloat(substituted, 64); err == nil {
		return finite(op, f)
	}
	if exprOnly.MatchString(substituted) && strings.ContainsAny(substituted, "+-*/") {
		v, err := Eval(substituted)
		if err != nil {
			return nil, types.Wrap(types.KindParameter, op, err)
		}
		return v, nil
	}
	return substituted, nil
}

// finite rejects NaN and infinities; they cannot be encoded or serialized.
func finite(op string, v any) (any, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		return v, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, types.Errorf(types.KindParameter, op, "value %v is not a finite number", v)
	}
	return v, nil
}

func need(op string, args []any, n int) error {
	if len(args) < n {
		return types.Errorf(types.KindParameter, op,
			"operation %s needs %d argument(s), got %d", op, n, len(args))
	}
	return nil
}

func stringify(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}
