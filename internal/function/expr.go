package function

import (
	"fmt"
	"math"
	"math/big"

	"go.starlark.net/syntax"
)

// Eval computes a numeric expression. Only number literals, + - * /, unary
// signs and parentheses are accepted; names, calls and every other construct
// are rejected before anything is evaluated.
func Eval(src string) (float64, error) {
	expr, err := syntax.ParseExpr("expr", src, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	v, err := eval(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid expression %q: result is not finite", src)
	}
	return v, nil
}

func eval(e syntax.Expr) (float64, error) {
	switch n := e.(type) {
	case *syntax.Literal:
		switch v := n.Value.(type) {
		case int64:
			return float64(v), nil
		case *big.Int:
			f, _ := new(big.Float).SetInt(v).Float64()
			return f, nil
		case float64:
			return v, nil
		}
		return 0, fmt.Errorf("unsupported literal %s", n.Raw)
	case *syntax.ParenExpr:
		return eval(n.X)
	case *syntax.UnaryExpr:
		if n.X == nil {
			return 0, fmt.Errorf("unsupported operator %s", n.Op)
		}
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case syntax.MINUS:
			return -x, nil
		case syntax.PLUS:
			return x, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	case *syntax.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case syntax.PLUS:
			return x + y, nil
		case syntax.MINUS:
			return x - y, nil
		case syntax.STAR:
			return x * y, nil
		case syntax.SLASH:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	}
	return 0, fmt.Errorf("unsupported expression %T", e)
}
