package expr

import (
	"strings"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

// FuncImpl is the signature every evaluated (non-raw) builtin implements.
// Args have already been evaluated and kind-checked against the
// FunctionMetadata that registered the function.
type FuncImpl func(ctx *Context, args []Value) (Value, error)

// RawFuncImpl is the signature of a function that needs its arguments
// unevaluated, currently only lambda().
type RawFuncImpl func(ctx *Context, args []Node) (Value, error)

// FunctionMetadata describes one built-in function: its arity, the
// semantic kind each positional argument must satisfy, and its
// implementation. MaxArgs of -1 means unbounded; when len(ArgKinds) is
// less than the number of supplied arguments, the last entry of ArgKinds
// is reused for every argument beyond it (this is how variadic functions
// like and, or, min, max, and path declare a uniform element kind).
type FunctionMetadata struct {
	Name     string
	MinArgs  int
	MaxArgs  int
	ArgKinds []ArgKind
	Raw      bool
	Fn       FuncImpl
	RawFn    RawFuncImpl
}

var registry = make(map[string]FunctionMetadata)

// Register adds a function to the global dispatch table, keyed
// case-insensitively as the spec requires.
func Register(meta FunctionMetadata) {
	registry[strings.ToLower(meta.Name)] = meta
}

// Lookup returns the registered metadata for name, if any.
func Lookup(name string) (FunctionMetadata, bool) {
	m, ok := registry[strings.ToLower(name)]
	return m, ok
}

// Evaluate walks an expression AST to a Value under ctx.
func Evaluate(ctx *Context, node Node) (Value, error) {
	switch n := node.(type) {
	case LiteralNode:
		return n.Value, nil
	case IdentNode:
		v, ok := ctx.Variables[n.Name]
		if !ok {
			return Value{}, dscerr.Function("undefined identifier", nil).
				WithFunction(n.Name).WithCode(dscerr.CodeUnknownParameter)
		}
		return v, nil
	case CallNode:
		return evalCall(ctx, n)
	case MemberNode:
		return evalMember(ctx, n)
	default:
		return Value{}, dscerr.Internal("unknown AST node type", nil)
	}
}

func evalCall(ctx *Context, call CallNode) (Value, error) {
	meta, ok := Lookup(call.Name)
	if !ok {
		if ctx.Mode == ModeTopLevel {
			if uf, ok := ctx.UserFunctions[strings.ToLower(call.Name)]; ok {
				return evalUserFunction(ctx, uf, call.Args)
			}
		}
		return Value{}, dscerr.Function("unknown function", nil).
			WithFunction(call.Name).WithCode(dscerr.CodeUnknownFunction)
	}

	if meta.Raw {
		return meta.RawFn(ctx, call.Args)
	}

	n := len(call.Args)
	if n < meta.MinArgs || (meta.MaxArgs >= 0 && n > meta.MaxArgs) {
		return Value{}, dscerr.Function("wrong number of arguments", nil).
			WithFunction(call.Name).WithCode(dscerr.CodeArityMismatch).
			WithDetail("got", n).WithDetail("min", meta.MinArgs).WithDetail("max", meta.MaxArgs)
	}

	args := make([]Value, n)
	for i, a := range call.Args {
		v, err := Evaluate(ctx, a)
		if err != nil {
			return Value{}, err
		}
		if len(meta.ArgKinds) > 0 {
			idx := i
			if idx >= len(meta.ArgKinds) {
				idx = len(meta.ArgKinds) - 1
			}
			kind := meta.ArgKinds[idx]
			if !kind.Accepts(v.Kind()) {
				return Value{}, dscerr.Function("argument kind mismatch", nil).
					WithFunction(call.Name).WithCode(dscerr.CodeArgKindMismatch).
					WithDetail("index", i).
					WithDetail("expected", kind.String()).
					WithDetail("got", v.Kind().String())
			}
		}
		args[i] = v
	}
	return meta.Fn(ctx, args)
}

func evalUserFunction(ctx *Context, uf UserFunction, argNodes []Node) (Value, error) {
	if len(argNodes) != len(uf.Params) {
		return Value{}, dscerr.Function("wrong number of arguments", nil).
			WithFunction(uf.Name).WithCode(dscerr.CodeArityMismatch).
			WithDetail("got", len(argNodes)).WithDetail("want", len(uf.Params))
	}
	bound := make(map[string]Value, len(uf.Params))
	for i, p := range uf.Params {
		v, err := Evaluate(ctx, argNodes[i])
		if err != nil {
			return Value{}, err
		}
		bound[p] = v
	}
	inner := ctx.ForUserFunction(bound)
	return Evaluate(inner, uf.Output)
}

func evalMember(ctx *Context, m MemberNode) (Value, error) {
	cur, err := Evaluate(ctx, m.Target)
	if err != nil {
		return Value{}, err
	}
	for _, sel := range m.Selectors {
		if sel.Index != nil {
			idxVal, err := Evaluate(ctx, sel.Index)
			if err != nil {
				return Value{}, err
			}
			next, err := indexInto(cur, idxVal)
			if err != nil {
				return Value{}, err
			}
			cur = next
			continue
		}
		next, ok := cur.Field(sel.Field)
		if !ok {
			return Value{}, dscerr.Function("field not found", nil).
				WithCode(dscerr.CodeTypeMismatch).WithDetail("field", sel.Field)
		}
		cur = next.WithSecureness(cur)
	}
	return cur, nil
}

func indexInto(v, idx Value) (Value, error) {
	switch v.Kind() {
	case KindArray:
		i, ok := idx.AsInt()
		if !ok {
			return Value{}, dscerr.Function("array index must be a number", nil).
				WithCode(dscerr.CodeArgKindMismatch)
		}
		items, _ := v.AsArray()
		if i < 0 || int(i) >= len(items) {
			return Value{}, dscerr.Function("array index out of range", nil).
				WithDetail("index", i).WithDetail("length", len(items))
		}
		return items[i], nil
	case KindObject, KindSecureObject:
		key, ok := idx.AsString()
		if !ok {
			return Value{}, dscerr.Function("object index must be a string", nil).
				WithCode(dscerr.CodeArgKindMismatch)
		}
		fv, ok := v.Field(key)
		if !ok {
			return Value{}, dscerr.Function("field not found", nil).
				WithCode(dscerr.CodeTypeMismatch).WithDetail("field", key)
		}
		return fv.WithSecureness(v), nil
	default:
		return Value{}, dscerr.Function("value is not indexable", nil).
			WithCode(dscerr.CodeTypeMismatch).WithDetail("kind", v.Kind().String())
	}
}

// CallLambda invokes a previously registered lambda body with the given
// positional arguments, in a scope derived from ctx with the lambda's
// parameters bound as variables. Used by the higher-order builtin
// map to apply a lambda handle produced by
// lambda() to each element under consideration.
func CallLambda(ctx *Context, lambdaID string, args []Value) (Value, error) {
	body, ok := ctx.Lambdas[lambdaID]
	if !ok {
		return Value{}, dscerr.Function("unknown lambda", nil).
			WithCode(dscerr.CodeUnknownFunction).WithDetail("id", lambdaID)
	}
	if len(args) != len(body.Params) {
		return Value{}, dscerr.Function("lambda arity mismatch", nil).
			WithCode(dscerr.CodeArityMismatch).
			WithDetail("got", len(args)).WithDetail("want", len(body.Params))
	}
	inner := ctx.Clone()
	for i, p := range body.Params {
		inner.Variables[p] = args[i]
	}
	return Evaluate(inner, body.Body)
}

// lambdaMeta registers the lambda() special form: a raw function whose
// trailing argument is an unevaluated body expression and whose leading
// arguments are bare parameter identifiers. It returns an opaque string
// handle (a uuid) that higher-order functions resolve back to the body via
// CallLambda.
func init() {
	Register(FunctionMetadata{
		Name: "lambda",
		Raw:  true,
		RawFn: func(ctx *Context, args []Node) (Value, error) {
			if len(args) < 2 {
				return Value{}, dscerr.Function("lambda requires at least one parameter and a body", nil).
					WithFunction("lambda").WithCode(dscerr.CodeArityMismatch)
			}
			body := args[len(args)-1]
			params, err := lambdaParams(ctx, args[:len(args)-1])
			if err != nil {
				return Value{}, err
			}
			id := ctx.RegisterLambda(LambdaBody{Params: params, Body: body})
			return String(id), nil
		},
	})
}

// lambdaParams accepts the two forms the language allows for a lambda's
// parameter list: either a single expression that evaluates to an array of
// parameter-name strings (the ARM-style createArray('item') form), or one
// bare identifier per parameter. Mixing the two is rejected.
func lambdaParams(ctx *Context, nodes []Node) ([]string, error) {
	if len(nodes) == 1 {
		if _, isIdent := nodes[0].(IdentNode); !isIdent {
			v, err := Evaluate(ctx, nodes[0])
			if err != nil {
				return nil, err
			}
			if v.Kind() == KindArray {
				items, _ := v.AsArray()
				params := make([]string, 0, len(items))
				for _, it := range items {
					s, ok := it.AsString()
					if !ok {
						return nil, dscerr.Function("lambda parameter array must contain only strings", nil).
							WithFunction("lambda")
					}
					params = append(params, s)
				}
				return params, nil
			}
		}
	}
	params := make([]string, 0, len(nodes))
	for _, a := range nodes {
		ident, ok := a.(IdentNode)
		if !ok {
			return nil, dscerr.Function("lambda parameters must be bare identifiers or an array of parameter names", nil).
				WithFunction("lambda")
		}
		params = append(params, ident.Name)
	}
	return params, nil
}
