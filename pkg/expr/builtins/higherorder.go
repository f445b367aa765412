package builtins

import (
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerHigherOrder()
}

// registerHigherOrder wires map(), the only higher-order builtin besides
// lambda() itself. map applies a lambda handle (minted by lambda()) to
// every element of an array, binding the lambda's first parameter to the
// element and, if the lambda declares a second parameter, the zero-based
// index to it.
func registerHigherOrder() {
	expr.Register(expr.FunctionMetadata{
		Name:     "map",
		MinArgs:  2,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgArray, expr.ArgString},
		Fn:       mapFn,
	})
}

func mapFn(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
	items, _ := args[0].AsArray()
	lambdaID, _ := args[1].AsString()

	out := make([]expr.Value, len(items))
	for i, item := range items {
		callArgs := []expr.Value{item, expr.Int(int64(i))}
		v, err := expr.CallLambda(ctx, lambdaID, callArgs[:lambdaArity(ctx, lambdaID)])
		if err != nil {
			return expr.Value{}, dscerr.Function("map lambda invocation failed", err).WithFunction("map")
		}
		out[i] = v
	}
	return expr.Array(out), nil
}

// lambdaArity looks up how many parameters the registered lambda declared
// so map() can pass just the item, or the item and its index, without the
// caller having to say which shape it used when it called lambda().
func lambdaArity(ctx *expr.Context, lambdaID string) int {
	if n, ok := ctx.LambdaParamCount(lambdaID); ok {
		return n
	}
	return 1
}
