package builtins

import (
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerArrays()
}

func registerArrays() {
	expr.Register(expr.FunctionMetadata{
		Name:    "createArray",
		MinArgs: 0,
		MaxArgs: -1,
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			return expr.Array(args), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "createObject",
		MinArgs: 0,
		MaxArgs: -1,
		Fn:      createObjectFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "contains",
		MinArgs: 2,
		MaxArgs: 2,
		Fn:      containsFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "indexOf",
		MinArgs: 2,
		MaxArgs: 2,
		Fn:      indexOfFn(false),
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "lastIndexOf",
		MinArgs: 2,
		MaxArgs: 2,
		Fn:      indexOfFn(true),
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "intersection",
		MinArgs: 2,
		MaxArgs: -1,
		Fn:      intersectionFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "coalesce",
		MinArgs: 1,
		MaxArgs: -1,
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			for _, a := range args {
				if !a.IsNull() {
					return a, nil
				}
			}
			return expr.Null(), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "items",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgObject},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			keys, _ := args[0].Keys()
			out := make([]expr.Value, 0, len(keys))
			for _, k := range keys {
				v, _ := args[0].Field(k)
				out = append(out, expr.NewObject().Set("key", expr.String(k)).Set("value", v).Build())
			}
			return expr.Array(out), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "objectKeys",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgObject},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			keys, _ := args[0].Keys()
			out := make([]expr.Value, len(keys))
			for i, k := range keys {
				out[i] = expr.String(k)
			}
			return expr.Array(out), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "shallowMerge",
		MinArgs: 1,
		MaxArgs: -1,
		Fn:      shallowMergeFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "take",
		MinArgs: 2,
		MaxArgs: 2,
		Fn:      takeFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "last",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      lastFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "tryGet",
		MinArgs:  2,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgObject, expr.ArgString},
		Fn:       tryGetFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "tryIndexFromEnd",
		MinArgs:  2,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgArray, expr.ArgNumber},
		Fn:       tryIndexFromEndFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "range",
		MinArgs:  2,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgNumber, expr.ArgNumber},
		Fn:       rangeFn,
	})
}

func createObjectFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	if len(args)%2 != 0 {
		return expr.Value{}, dscerr.Function("createObject arguments must be key/value pairs", nil).WithFunction("createObject")
	}
	b := expr.NewObject()
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].AsString()
		if !ok {
			return expr.Value{}, dscerr.Function("createObject key must be a string", nil).
				WithFunction("createObject").WithCode(dscerr.CodeArgKindMismatch)
		}
		b.Set(key, args[i+1])
	}
	return b.Build(), nil
}

func containsFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	needle := args[1]
	switch args[0].Kind() {
	case expr.KindArray:
		items, _ := args[0].AsArray()
		for _, it := range items {
			if expr.Equal(it, needle) {
				return expr.Bool(true), nil
			}
		}
		return expr.Bool(false), nil
	case expr.KindString, expr.KindSecureString:
		haystack, _ := args[0].AsString()
		sub, ok := needle.AsString()
		if !ok {
			return expr.Value{}, dscerr.Function("contains needle must be a string when haystack is a string", nil).
				WithFunction("contains")
		}
		return expr.Bool(containsSubstring(haystack, sub)), nil
	case expr.KindObject, expr.KindSecureObject:
		key, ok := needle.AsString()
		if !ok {
			return expr.Value{}, dscerr.Function("contains key must be a string when haystack is an object", nil).
				WithFunction("contains")
		}
		_, ok = args[0].Field(key)
		return expr.Bool(ok), nil
	default:
		return expr.Value{}, dscerr.Function("contains requires an array, object, or string haystack", nil).
			WithFunction("contains")
	}
}

func containsSubstring(haystack, sub string) bool {
	if sub == "" {
		return true
	}
	for i := 0; i+len(sub) <= len(haystack); i++ {
		if haystack[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func indexOfFn(fromEnd bool) expr.FuncImpl {
	name := "indexOf"
	if fromEnd {
		name = "lastIndexOf"
	}
	return func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
		items, ok := args[0].AsArray()
		if !ok {
			return expr.Value{}, dscerr.Function("first argument must be an array", nil).
				WithFunction(name).WithCode(dscerr.CodeArgKindMismatch)
		}
		needle := args[1]
		found := int64(-1)
		if fromEnd {
			for i := len(items) - 1; i >= 0; i-- {
				if expr.Equal(items[i], needle) {
					found = int64(i)
					break
				}
			}
		} else {
			for i, it := range items {
				if expr.Equal(it, needle) {
					found = int64(i)
					break
				}
			}
		}
		return expr.Int(found), nil
	}
}

func intersectionFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	switch args[0].Kind() {
	case expr.KindArray:
		first, _ := args[0].AsArray()
		var out []expr.Value
		for _, item := range first {
			inAll := true
			for _, other := range args[1:] {
				items, ok := other.AsArray()
				if !ok {
					return expr.Value{}, dscerr.Function("intersection arguments must all be arrays", nil).WithFunction("intersection")
				}
				if !containsValue(items, item) {
					inAll = false
					break
				}
			}
			if inAll && !containsValue(out, item) {
				out = append(out, item)
			}
		}
		return expr.Array(out), nil
	case expr.KindObject, expr.KindSecureObject:
		keys, _ := args[0].Keys()
		b := expr.NewObject()
		for _, k := range keys {
			v, _ := args[0].Field(k)
			inAll := true
			for _, other := range args[1:] {
				ov, ok := other.Field(k)
				if !ok || !expr.Equal(ov, v) {
					inAll = false
					break
				}
			}
			if inAll {
				b.Set(k, v)
			}
		}
		return b.Build(), nil
	default:
		return expr.Value{}, dscerr.Function("intersection requires array or object arguments", nil).WithFunction("intersection")
	}
}

func containsValue(items []expr.Value, v expr.Value) bool {
	for _, it := range items {
		if expr.Equal(it, v) {
			return true
		}
	}
	return false
}

func shallowMergeFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	b := expr.NewObject()
	for _, a := range args {
		if a.Kind() != expr.KindObject && a.Kind() != expr.KindSecureObject {
			return expr.Value{}, dscerr.Function("shallowMerge requires object arguments", nil).WithFunction("shallowMerge")
		}
		keys, _ := a.Keys()
		for _, k := range keys {
			v, _ := a.Field(k)
			b.Set(k, v)
		}
	}
	return b.Build(), nil
}

func takeFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	n, ok := args[1].AsInt()
	if !ok {
		return expr.Value{}, dscerr.Function("take count must be a number", nil).WithFunction("take")
	}
	if n < 0 {
		n = 0
	}
	switch args[0].Kind() {
	case expr.KindArray:
		items, _ := args[0].AsArray()
		if n > int64(len(items)) {
			n = int64(len(items))
		}
		return expr.Array(items[:n]), nil
	case expr.KindString, expr.KindSecureString:
		s, _ := args[0].AsString()
		runes := []rune(s)
		if n > int64(len(runes)) {
			n = int64(len(runes))
		}
		return expr.String(string(runes[:n])).WithSecureness(args[0]), nil
	default:
		return expr.Value{}, dscerr.Function("take requires an array or string", nil).WithFunction("take")
	}
}

func lastFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	switch args[0].Kind() {
	case expr.KindArray:
		items, _ := args[0].AsArray()
		if len(items) == 0 {
			return expr.Value{}, dscerr.Function("last called on an empty array", nil).WithFunction("last")
		}
		return items[len(items)-1], nil
	case expr.KindString, expr.KindSecureString:
		s, _ := args[0].AsString()
		runes := []rune(s)
		if len(runes) == 0 {
			return expr.Value{}, dscerr.Function("last called on an empty string", nil).WithFunction("last")
		}
		return expr.String(string(runes[len(runes)-1])).WithSecureness(args[0]), nil
	default:
		return expr.Value{}, dscerr.Function("last requires an array or string", nil).WithFunction("last")
	}
}

func tryGetFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	cur := args[0]
	for _, pathArg := range args[1:] {
		key, ok := pathArg.AsString()
		if !ok {
			return expr.Null(), nil
		}
		if cur.Kind() != expr.KindObject && cur.Kind() != expr.KindSecureObject {
			return expr.Null(), nil
		}
		next, ok := cur.Field(key)
		if !ok {
			return expr.Null(), nil
		}
		cur = next.WithSecureness(cur)
	}
	return cur, nil
}

func tryIndexFromEndFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	items, _ := args[0].AsArray()
	offset, _ := args[1].AsInt()
	idx := int64(len(items)) - 1 - offset
	if idx < 0 || idx >= int64(len(items)) {
		return expr.Null(), nil
	}
	return items[idx], nil
}

func rangeFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	start, _ := args[0].AsInt()
	count, _ := args[1].AsInt()
	if count < 0 {
		return expr.Value{}, dscerr.Function("range count must not be negative", nil).WithFunction("range")
	}
	if count > 10000 {
		return expr.Value{}, dscerr.Function("range count must not exceed 10000", nil).WithFunction("range")
	}
	sum := start + count
	if sum > 2147483647 {
		return expr.Value{}, dscerr.Function("range start plus count exceeds the maximum supported value", nil).WithFunction("range")
	}
	out := make([]expr.Value, count)
	for i := int64(0); i < count; i++ {
		out[i] = expr.Int(start + i)
	}
	return expr.Array(out), nil
}
