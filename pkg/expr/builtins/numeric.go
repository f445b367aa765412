package builtins

import (
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerNumeric()
}

// registerNumeric wires the small set of integer arithmetic functions the
// expression language exposes to property values (used, for instance, by
// lambda bodies passed to map()).
func registerNumeric() {
	bin := func(name string, apply func(a, b int64) (int64, error)) {
		expr.Register(expr.FunctionMetadata{
			Name:     name,
			MinArgs:  2,
			MaxArgs:  2,
			ArgKinds: []expr.ArgKind{expr.ArgNumber},
			Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
				a, _ := args[0].AsInt()
				b, _ := args[1].AsInt()
				r, err := apply(a, b)
				if err != nil {
					return expr.Value{}, dscerr.Function(err.Error(), nil).WithFunction(name)
				}
				return expr.Int(r), nil
			},
		})
	}

	bin("add", func(a, b int64) (int64, error) { return a + b, nil })
	bin("sub", func(a, b int64) (int64, error) { return a - b, nil })
	bin("mul", func(a, b int64) (int64, error) { return a * b, nil })
	bin("div", func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivByZero
		}
		return a / b, nil
	})
	bin("mod", func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivByZero
		}
		return a % b, nil
	})

	expr.Register(expr.FunctionMetadata{
		Name:     "min",
		MinArgs:  1,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgNumber},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			m, _ := args[0].AsInt()
			for _, a := range args[1:] {
				v, _ := a.AsInt()
				if v < m {
					m = v
				}
			}
			return expr.Int(m), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "max",
		MinArgs:  1,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgNumber},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			m, _ := args[0].AsInt()
			for _, a := range args[1:] {
				v, _ := a.AsInt()
				if v > m {
					m = v
				}
			}
			return expr.Int(m), nil
		},
	})
}

type divByZeroError struct{}

func (divByZeroError) Error() string { return "division by zero" }

var errDivByZero = divByZeroError{}
