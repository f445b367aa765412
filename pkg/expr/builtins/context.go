package builtins

import (
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerContext()
}

func registerContext() {
	expr.Register(expr.FunctionMetadata{
		Name:     "parameters",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
			name, _ := args[0].AsString()
			v, ok := ctx.Parameters[name]
			if !ok {
				return expr.Value{}, dscerr.Function("undeclared parameter", nil).
					WithFunction("parameters").WithCode(dscerr.CodeUnknownParameter).WithParameter(name)
			}
			return v, nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "variables",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
			name, _ := args[0].AsString()
			v, ok := ctx.Variables[name]
			if !ok {
				return expr.Value{}, dscerr.Function("undeclared variable", nil).
					WithFunction("variables").WithCode(dscerr.CodeUnknownParameter).WithParameter(name)
			}
			return v, nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "envvar",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
			name, _ := args[0].AsString()
			lookup := ctx.EnvLookup
			if lookup == nil {
				return expr.Value{}, dscerr.Function("environment access is unavailable in this context", nil).WithFunction("envvar")
			}
			val, ok := lookup(name)
			if !ok {
				return expr.Value{}, dscerr.Function("environment variable is not set", nil).
					WithFunction("envvar").WithDetail("name", name)
			}
			return expr.String(val), nil
		},
	})
}
