package builtins

import (
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerLogical()
}

func registerLogical() {
	expr.Register(expr.FunctionMetadata{
		Name:     "and",
		MinArgs:  2,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgBoolean},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			for _, a := range args {
				b, _ := a.AsBool()
				if !b {
					return expr.Bool(false), nil
				}
			}
			return expr.Bool(true), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "or",
		MinArgs:  2,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgBoolean},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			for _, a := range args {
				b, _ := a.AsBool()
				if b {
					return expr.Bool(true), nil
				}
			}
			return expr.Bool(false), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "not",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgBoolean},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			b, _ := args[0].AsBool()
			return expr.Bool(!b), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "equals",
		MinArgs: 2,
		MaxArgs: 2,
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			return expr.Bool(expr.Equal(args[0], args[1])), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "if",
		MinArgs: 3,
		MaxArgs: 3,
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			cond, ok := args[0].AsBool()
			if !ok {
				return expr.Value{}, dscerr.Function("if condition must be a boolean", nil).
					WithFunction("if").WithCode(dscerr.CodeArgKindMismatch)
			}
			if cond {
				return args[1], nil
			}
			return args[2], nil
		},
	})

	cmp := func(name string, pass func(c int) bool) {
		expr.Register(expr.FunctionMetadata{
			Name:    name,
			MinArgs: 2,
			MaxArgs: 2,
			Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
				c, err := compareValues(args[0], args[1])
				if err != nil {
					return expr.Value{}, err.WithFunction(name)
				}
				return expr.Bool(pass(c)), nil
			},
		})
	}
	cmp("greater", func(c int) bool { return c > 0 })
	cmp("greaterOrEquals", func(c int) bool { return c >= 0 })
	cmp("less", func(c int) bool { return c < 0 })
	cmp("lessOrEquals", func(c int) bool { return c <= 0 })
}

// compareValues orders two values of the same comparable kind (number or
// string), returning -1/0/1.
func compareValues(a, b expr.Value) (int, *dscerr.Error) {
	if ai, ok := a.AsInt(); ok {
		bi, ok := b.AsInt()
		if !ok {
			return 0, dscerr.Function("arguments must be the same comparable kind", nil).
				WithCode(dscerr.CodeArgKindMismatch)
		}
		switch {
		case ai < bi:
			return -1, nil
		case ai > bi:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if as, ok := a.AsString(); ok {
		bs, ok := b.AsString()
		if !ok {
			return 0, dscerr.Function("arguments must be the same comparable kind", nil).
				WithCode(dscerr.CodeArgKindMismatch)
		}
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, dscerr.Function("arguments must be numbers or strings", nil).
		WithCode(dscerr.CodeArgKindMismatch)
}
