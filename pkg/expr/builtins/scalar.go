// Package builtins registers every built-in function of the expression
// language with the expr package's dispatch table. Functions are grouped
// into files by family (scalar, arrays, logical, net, fileio, numeric,
// context, higherorder) the way the original function-per-file layout
// organized them, but collapsed into one registration per family instead
// of one struct per function.
package builtins

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

func init() {
	registerScalar()
}

func registerScalar() {
	expr.Register(expr.FunctionMetadata{
		Name:    "concat",
		MinArgs: 2,
		MaxArgs: -1,
		Fn:      concatFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "substring",
		MinArgs: 2,
		MaxArgs: 3,
		ArgKinds: []expr.ArgKind{
			expr.ArgString, expr.ArgNumber, expr.ArgNumber,
		},
		Fn: substringFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:    "format",
		MinArgs: 1,
		MaxArgs: -1,
		Fn:      formatFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "base64",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			return expr.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "base64ToString",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return expr.Value{}, dscerr.Function("invalid base64 input", err).WithFunction("base64ToString")
			}
			return expr.String(string(b)), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "dataUri",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			encoded := base64.StdEncoding.EncodeToString([]byte(s))
			return expr.String("data:text/plain;charset=utf8;base64," + encoded), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "dataUriToString",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			idx := strings.Index(s, ",")
			if idx < 0 || !strings.Contains(s, "base64") {
				return expr.Value{}, dscerr.Function("malformed data URI", nil).WithFunction("dataUriToString")
			}
			b, err := base64.StdEncoding.DecodeString(s[idx+1:])
			if err != nil {
				return expr.Value{}, dscerr.Function("invalid base64 payload in data URI", err).WithFunction("dataUriToString")
			}
			return expr.String(string(b)), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "uriComponent",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			return expr.String(url.QueryEscape(s)), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "uriComponentToString",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			s, _ := args[0].AsString()
			decoded, err := url.QueryUnescape(s)
			if err != nil {
				return expr.Value{}, dscerr.Function("invalid percent-encoding", err).WithFunction("uriComponentToString")
			}
			return expr.String(decoded), nil
		},
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "uri",
		MinArgs:  2,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn:       uriFn,
	})
}

// uriFn joins a base URI and a relative reference per RFC 3986, the same
// rule net/url.Parse+ResolveReference already implements.
func uriFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	base, _ := args[0].AsString()
	ref, _ := args[1].AsString()
	baseURL, err := url.Parse(base)
	if err != nil {
		return expr.Value{}, dscerr.Function("base is not a valid URI", err).WithFunction("uri")
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return expr.Value{}, dscerr.Function("relativeUri is not a valid URI", err).WithFunction("uri")
	}
	return expr.String(baseURL.ResolveReference(refURL).String()), nil
}

// concatFn implements both the string and array overloads of concat: the
// input type is fixed by the first argument and every subsequent argument
// must match it, matching the original's "argsMustBeStrings" /
// "argsMustBeArrays" behavior.
func concatFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	switch args[0].Kind() {
	case expr.KindString, expr.KindSecureString, expr.KindArray:
		// handled below
	default:
		return expr.Value{}, dscerr.Function("concat requires string or array arguments", nil).WithFunction("concat")
	}
	switch args[0].Kind() {
	case expr.KindString, expr.KindSecureString:
		var sb strings.Builder
		for _, a := range args {
			s, ok := a.AsString()
			if !ok {
				return expr.Value{}, dscerr.Function("concat arguments must all be strings", nil).WithFunction("concat")
			}
			sb.WriteString(s)
		}
		return expr.String(sb.String()), nil
	case expr.KindArray:
		var out []expr.Value
		for _, a := range args {
			items, ok := a.AsArray()
			if !ok {
				return expr.Value{}, dscerr.Function("concat arguments must all be arrays", nil).WithFunction("concat")
			}
			out = append(out, items...)
		}
		return expr.Array(out), nil
	default:
		return expr.Value{}, dscerr.Function("concat requires string or array arguments", nil).WithFunction("concat")
	}
}

func substringFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	s, _ := args[0].AsString()
	start, _ := args[1].AsInt()
	runes := []rune(s)
	length := int64(len(runes)) - start
	if len(args) == 3 {
		length, _ = args[2].AsInt()
	}
	if start < 0 || start > int64(len(runes)) {
		return expr.Value{}, dscerr.Function("substring start index out of range", nil).
			WithFunction("substring").WithDetail("start", start).WithDetail("length", len(runes))
	}
	if length < 0 || start+length > int64(len(runes)) {
		return expr.Value{}, dscerr.Function("substring length out of range", nil).
			WithFunction("substring").WithDetail("start", start).WithDetail("length", length)
	}
	return expr.String(string(runes[start : start+length])).WithSecureness(args[0]), nil
}

// formatFn implements ARM-style positional formatting: {0}, {1}, ... are
// replaced by the corresponding argument's display form.
func formatFn(_ *expr.Context, args []expr.Value) (expr.Value, error) {
	tmpl, ok := args[0].AsString()
	if !ok {
		return expr.Value{}, dscerr.Function("format template must be a string", nil).
			WithFunction("format").WithCode(dscerr.CodeArgKindMismatch)
	}
	rest := args[1:]
	var sb strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return expr.Value{}, dscerr.Function("unterminated placeholder in format string", nil).WithFunction("format")
			}
			spec := tmpl[i+1 : i+end]
			idxStr, verb, hasVerb := strings.Cut(spec, ":")
			var idx int
			if _, err := fmt.Sscanf(idxStr, "%d", &idx); err != nil {
				return expr.Value{}, dscerr.Function("invalid placeholder index in format string", err).
					WithFunction("format").WithDetail("placeholder", spec)
			}
			if idx < 0 || idx >= len(rest) {
				return expr.Value{}, dscerr.Function("format placeholder index out of range", nil).
					WithFunction("format").WithDetail("index", idx).WithDetail("argCount", len(rest))
			}
			rendered, err := formatArg(rest[idx], verb, hasVerb)
			if err != nil {
				return expr.Value{}, err
			}
			sb.WriteString(rendered)
			i += end + 1
			continue
		}
		sb.WriteByte(tmpl[i])
		i++
	}
	return expr.String(sb.String()), nil
}

// formatArg renders one interpolated argument, honoring the optional
// ":x"/":X"/":o"/":b"/":e"/":E" numeric format specifier. Unspecified
// renders as Display() (so secure values still show their placeholder).
func formatArg(v expr.Value, verb string, hasVerb bool) (string, error) {
	if !hasVerb || verb == "" {
		return v.Display(), nil
	}
	n, ok := v.AsInt()
	if !ok {
		return "", dscerr.Function("numeric format specifier requires a number argument", nil).
			WithFunction("format").WithDetail("specifier", verb)
	}
	switch verb {
	case "x":
		return fmt.Sprintf("%x", n), nil
	case "X":
		return fmt.Sprintf("%X", n), nil
	case "o":
		return fmt.Sprintf("%o", n), nil
	case "b":
		return fmt.Sprintf("%b", n), nil
	case "e":
		return fmt.Sprintf("%e", float64(n)), nil
	case "E":
		return fmt.Sprintf("%E", float64(n)), nil
	default:
		return "", dscerr.Function("unsupported format specifier", nil).
			WithFunction("format").WithDetail("specifier", verb)
	}
}
