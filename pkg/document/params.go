package document

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

// cueCtx is shared across parameter binding calls; cue.Context is safe for
// concurrent use and compiling schemas per-call is cheap enough that a
// single package-level context (the same pattern the teacher's
// SchemaRegistry wraps in a struct) avoids re-initializing CUE's runtime
// per parameter.
var cueCtx = cuecontext.New()

// BindParameters validates supplied against each declared ParameterSpec —
// type match, allowedValues membership, min/max length, min/max value —
// fills in DefaultValue where supplied omits an entry, and errors on a
// required parameter (no default, not supplied). Constraint checking is
// delegated to CUE unification (spec invariant (iv) and §3.2), the same
// "compile a schema, encode the value, unify, validate concrete" sequence
// the teacher's SchemaRegistry uses for whole-document schemas, here
// compiled per parameter from its declared type and bounds.
func BindParameters(spec map[string]ParameterSpec, supplied map[string]interface{}) (BoundParameters, error) {
	bound := make(BoundParameters, len(spec))

	for name, ps := range spec {
		raw, ok := supplied[name]
		if !ok {
			if ps.DefaultValue != nil {
				raw = ps.DefaultValue
			} else {
				return nil, dscerr.Validation("required parameter was not supplied and has no default", nil).
					WithParameter(name)
			}
		}

		if err := validateConstraints(name, ps, raw); err != nil {
			return nil, err
		}

		v, err := expr.FromJSON(raw)
		if err != nil {
			return nil, dscerr.Validation("parameter value could not be converted", err).WithParameter(name)
		}
		if ps.Type == TypeSecureString || ps.Type == TypeSecureObject {
			v = v.WithSecureness(secureSeed(ps.Type))
		}
		if err := checkType(ps.Type, v); err != nil {
			return nil, dscerr.Validation("parameter value does not match its declared type", err).
				WithParameter(name).WithCode(dscerr.CodeTypeMismatch).
				WithDetail("declaredType", string(ps.Type))
		}
		bound[name] = v
	}

	for name := range supplied {
		if _, declared := spec[name]; !declared {
			return nil, dscerr.Validation("supplied parameter was not declared in the configuration", nil).
				WithParameter(name)
		}
	}

	return bound, nil
}

func secureSeed(t DataType) expr.Value {
	if t == TypeSecureObject {
		return expr.NewObject().BuildSecure()
	}
	return expr.SecureString("")
}

// checkType confirms the bound value's Kind matches what its declared
// DataType requires, per invariant (iv).
func checkType(t DataType, v expr.Value) error {
	want := map[DataType]expr.Kind{
		TypeString:       expr.KindString,
		TypeSecureString: expr.KindSecureString,
		TypeInt:          expr.KindInt,
		TypeBool:         expr.KindBool,
		TypeObject:       expr.KindObject,
		TypeSecureObject: expr.KindSecureObject,
		TypeArray:        expr.KindArray,
	}[t]
	if v.Kind() != want {
		return fmt.Errorf("expected kind %s, got %s", want, v.Kind())
	}
	return nil
}

// validateConstraints compiles a CUE schema from ps's bounds and unifies
// it with the supplied value. Length constraints apply to strings and
// arrays; value constraints apply to ints; allowedValues applies to any
// type as a literal disjunction.
func validateConstraints(name string, ps ParameterSpec, raw interface{}) error {
	var clauses []string

	if ps.MinLength != nil || ps.MaxLength != nil {
		switch ps.Type {
		case TypeString, TypeSecureString:
			if ps.MinLength != nil {
				clauses = append(clauses, fmt.Sprintf("strings.MinRunes(%d)", *ps.MinLength))
			}
			if ps.MaxLength != nil {
				clauses = append(clauses, fmt.Sprintf("strings.MaxRunes(%d)", *ps.MaxLength))
			}
		case TypeArray:
			if ps.MinLength != nil {
				clauses = append(clauses, fmt.Sprintf("list.MinItems(%d)", *ps.MinLength))
			}
			if ps.MaxLength != nil {
				clauses = append(clauses, fmt.Sprintf("list.MaxItems(%d)", *ps.MaxLength))
			}
		default:
			return dscerr.Validation("minLength/maxLength only apply to string or array parameters", nil).
				WithParameter(name)
		}
	}

	if ps.MinValue != nil {
		clauses = append(clauses, fmt.Sprintf(">=%d", *ps.MinValue))
	}
	if ps.MaxValue != nil {
		clauses = append(clauses, fmt.Sprintf("<=%d", *ps.MaxValue))
	}

	if len(ps.AllowedValues) > 0 {
		encoded := make([]string, len(ps.AllowedValues))
		for i, av := range ps.AllowedValues {
			ev := cueCtx.Encode(av)
			encoded[i] = fmt.Sprintf("%v", ev)
		}
		clauses = append(clauses, strings.Join(encoded, " | "))
	}

	if len(clauses) == 0 {
		return nil
	}

	schemaSrc := `import ("strings"; "list")
#Constraint: ` + strings.Join(clauses, " & ")
	schema := cueCtx.CompileString(schemaSrc)
	if err := schema.Err(); err != nil {
		return dscerr.Internal("failed to compile parameter constraint schema", err).WithDetail("parameter", name)
	}

	dataVal := cueCtx.Encode(raw)
	if err := dataVal.Err(); err != nil {
		return dscerr.Validation("parameter value could not be encoded for constraint checking", err).
			WithParameter(name)
	}

	field := schema.LookupPath(cue.ParsePath("#Constraint"))
	unified := field.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return dscerr.Validation("parameter value violates its declared constraints", err).
			WithParameter(name)
	}
	return nil
}
