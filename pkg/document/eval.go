package document

import (
	"sort"
	"strings"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

// EvalVariables evaluates each of cfg's variables in document order (so a
// later variable's expression may reference an earlier one, but not vice
// versa) and binds the results into ctx.Variables for every subsequent
// evaluation — property evaluation, later variables, and the variables()
// builtin.
func EvalVariables(ctx *expr.Context, cfg *Configuration) error {
	for _, name := range cfg.VariableOrder {
		raw, ok := cfg.Variables[name]
		if !ok {
			continue
		}
		v, err := evalStatementTree(ctx, raw)
		if err != nil {
			return dscerr.Validation("failed to evaluate variable", err).WithDetail("variable", name)
		}
		ctx.Variables[name] = v
	}
	return nil
}

// RegisterUserFunctions parses each declared user function's body
// expression once and registers it into ctx.UserFunctions, keyed
// lowercased per spec §3.5. Bodies are parsed (not evaluated) here;
// evaluation happens per call, in the fresh scope Context.ForUserFunction
// produces.
func RegisterUserFunctions(ctx *expr.Context, cfg *Configuration) error {
	for name, def := range cfg.UserFunctions {
		body, err := expr.Statement(def.Output)
		if err != nil {
			return dscerr.Validation("failed to parse user function body", err).WithFunction(name)
		}
		if !expr.IsExpression(def.Output) {
			return dscerr.Validation("user function body must be an expression", nil).WithFunction(name)
		}
		ctx.UserFunctions[strings.ToLower(name)] = expr.UserFunction{
			Name:   name,
			Params: def.Parameters,
			Output: body,
		}
	}
	return nil
}

// EvalProperties recursively walks a resource instance's property bag,
// running every string leaf through statement evaluation. Non-string
// leaves are passed through untouched. The result is an expr.Value tree
// (KindObject at the root) ready to serialize as the resource's input.
func EvalProperties(ctx *expr.Context, properties map[string]interface{}) (expr.Value, error) {
	b := expr.NewObject()
	for _, k := range sortedKeys(properties) {
		v, err := evalStatementTree(ctx, properties[k])
		if err != nil {
			return expr.Value{}, dscerr.Validation("failed to evaluate resource property", err).WithDetail("property", k)
		}
		b.Set(k, v)
	}
	return b.Build(), nil
}

// evalStatementTree recurses into a generic JSON-shaped tree (as produced
// by encoding/json's map[string]interface{}/[]interface{} decoding),
// evaluating every string leaf as a statement and leaving every other
// leaf as its direct expr.Value conversion.
func evalStatementTree(ctx *expr.Context, node interface{}) (expr.Value, error) {
	switch t := node.(type) {
	case string:
		return evalStringStatement(ctx, t)
	case map[string]interface{}:
		b := expr.NewObject()
		for _, k := range sortedKeys(t) {
			v, err := evalStatementTree(ctx, t[k])
			if err != nil {
				return expr.Value{}, err
			}
			b.Set(k, v)
		}
		return b.Build(), nil
	case []interface{}:
		items := make([]expr.Value, len(t))
		for i, e := range t {
			v, err := evalStatementTree(ctx, e)
			if err != nil {
				return expr.Value{}, err
			}
			items[i] = v
		}
		return expr.Array(items), nil
	default:
		return expr.FromJSON(node)
	}
}

// evalStringStatement runs the three-way classification from spec §4.4:
// plain literal, escaped `[[` literal, or `[...]` expression.
func evalStringStatement(ctx *expr.Context, s string) (expr.Value, error) {
	node, err := expr.Statement(s)
	if err != nil {
		return expr.Value{}, err
	}
	return expr.Evaluate(ctx, node)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
