// Package expr implements the embedded expression language: a small
// ARM-template-style DSL of the form [funcName(arg, ...)] that appears
// inside string fields of a configuration document. It is a parser, a
// tagged-value type system, and a host for user-defined and built-in
// functions.
package expr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags the variant carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindArray
	KindObject
	KindSecureString
	KindSecureObject
)

// String renders the Kind name, used in error messages ("argument N of fn
// must be a string").
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindSecureString:
		return "secureString"
	case KindSecureObject:
		return "secureObject"
	default:
		return "unknown"
	}
}

// ArgKind is the closed set of semantic argument kinds function metadata
// declares acceptance of. It is coarser than Kind: a function that accepts
// ArgNumber accepts the KindInt variant, and one that accepts ArgString
// accepts both KindString and KindSecureString (secureness is preserved by
// the caller, not stripped by kind-checking).
type ArgKind int

const (
	ArgArray ArgKind = iota
	ArgBoolean
	ArgNull
	ArgNumber
	ArgObject
	ArgString
)

func (a ArgKind) String() string {
	switch a {
	case ArgArray:
		return "array"
	case ArgBoolean:
		return "boolean"
	case ArgNull:
		return "null"
	case ArgNumber:
		return "number"
	case ArgObject:
		return "object"
	case ArgString:
		return "string"
	default:
		return "unknown"
	}
}

// Accepts reports whether a concrete Value.Kind satisfies this ArgKind.
func (a ArgKind) Accepts(k Kind) bool {
	switch a {
	case ArgArray:
		return k == KindArray
	case ArgBoolean:
		return k == KindBool
	case ArgNull:
		return k == KindNull
	case ArgNumber:
		return k == KindInt
	case ArgObject:
		return k == KindObject || k == KindSecureObject
	case ArgString:
		return k == KindString || k == KindSecureString
	default:
		return false
	}
}

// Value is the tagged value that flows through expression evaluation and
// across the resource boundary. Secure variants are a distinct Kind rather
// than a flag on String, so every code path that wants the raw payload of a
// secure value must consciously call Reveal.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
	arr  []Value
	obj  *orderedObject
}

// orderedObject preserves insertion order for Object/SecureObject values so
// that items(), objectKeys(), and JSON round-tripping are deterministic.
type orderedObject struct {
	keys   []string
	values map[string]Value
}

func newOrderedObject() *orderedObject {
	return &orderedObject{values: make(map[string]Value)}
}

func (o *orderedObject) set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *orderedObject) get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Constructors.

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// String wraps a plain string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// SecureString wraps a string whose payload must never leak into logs or
// Display output.
func SecureString(s string) Value { return Value{kind: KindSecureString, s: s} }

// Array wraps a slice of values.
func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// ObjectBuilder holds an object under construction; NewObject starts one.
type ObjectBuilder struct{ o *orderedObject }

// NewObject starts building an Object value.
func NewObject() *ObjectBuilder { return &ObjectBuilder{o: newOrderedObject()} }

// Set adds or overwrites a key, preserving first-insertion order.
func (b *ObjectBuilder) Set(key string, v Value) *ObjectBuilder {
	b.o.set(key, v)
	return b
}

// Build finalizes the object as a plain Object value.
func (b *ObjectBuilder) Build() Value { return Value{kind: KindObject, obj: b.o} }

// BuildSecure finalizes the object as a SecureObject value.
func (b *ObjectBuilder) BuildSecure() Value { return Value{kind: KindSecureObject, obj: b.o} }

// Accessors.

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsSecure reports whether the value is a secure variant.
func (v Value) IsSecure() bool { return v.kind == KindSecureString || v.kind == KindSecureObject }

// AsBool returns the boolean payload; ok is false if the Kind isn't Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload; ok is false if the Kind isn't Int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string payload for String or SecureString values.
// Callers that must not leak secure payloads should check IsSecure first.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString || v.kind == KindSecureString
}

// AsArray returns the element slice for Array values.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// Keys returns the ordered keys of an Object/SecureObject value.
func (v Value) Keys() ([]string, bool) {
	if v.obj == nil {
		return nil, false
	}
	cp := make([]string, len(v.obj.keys))
	copy(cp, v.obj.keys)
	return cp, true
}

// Field looks up a key in an Object/SecureObject value.
func (v Value) Field(key string) (Value, bool) {
	if v.obj == nil {
		return Value{}, false
	}
	return v.obj.get(key)
}

// WithSecureness returns a copy of v re-tagged with the secureness of
// source: used by functions that pass a value through unchanged (e.g.
// parameters(), tryGet()) so secureness propagates through copies without
// requiring every caller to special-case it.
func (v Value) WithSecureness(source Value) Value {
	if !source.IsSecure() {
		return v
	}
	switch v.kind {
	case KindObject:
		cp := v
		cp.kind = KindSecureObject
		return cp
	case KindString:
		cp := v
		cp.kind = KindSecureString
		return cp
	default:
		return v
	}
}

// Display renders the value the way logs and diagnostics do: secure values
// always render as the literal placeholder, never their payload.
func (v Value) Display() string {
	switch v.kind {
	case KindSecureString, KindSecureObject:
		return "<secureValue>"
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return v.s
	case KindArray:
		b, _ := json.Marshal(v.toJSON())
		return string(b)
	case KindObject:
		b, _ := json.Marshal(v.toJSON())
		return string(b)
	default:
		return ""
	}
}

// Reveal returns the value's real payload as a string, secure or not —
// the conscious opt-out Display's placeholder is meant to force. Callers
// crossing a trust boundary that legitimately needs the payload (setting
// a child process's environment, for instance) call this explicitly
// instead of Display(). Nested arrays/objects reveal their true payload
// all the way down, rather than the {"secureString": ...}/
// {"secureObject": ...} wire envelope toJSON uses for egress.
func (v Value) Reveal() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString, KindSecureString:
		return v.s
	case KindArray, KindObject, KindSecureObject:
		b, _ := json.Marshal(v.revealJSON())
		return string(b)
	default:
		return ""
	}
}

// revealJSON is toJSON without the secure-value wire envelope: the real
// nested payload, for callers that already called Reveal deliberately.
func (v Value) revealJSON() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindString, KindSecureString:
		return v.s
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.revealJSON()
		}
		return out
	case KindObject, KindSecureObject:
		out := make(map[string]interface{}, len(v.obj.keys))
		for _, k := range v.obj.keys {
			fv, _ := v.obj.get(k)
			out[k] = fv.revealJSON()
		}
		return out
	default:
		return nil
	}
}

// Equal implements value equality. Secure values are compared by payload,
// matching the "equality on secure values is by payload" invariant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// String and SecureString (and Object/SecureObject) compare equal
		// on payload when one side is secure and the other isn't, since
		// equality is defined over payload, not taint.
		if isStringLike(a.kind) && isStringLike(b.kind) {
			return a.s == b.s
		}
		if isObjectLike(a.kind) && isObjectLike(b.kind) {
			return objectsEqual(a.obj, b.obj)
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindString, KindSecureString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject, KindSecureObject:
		return objectsEqual(a.obj, b.obj)
	}
	return false
}

func isStringLike(k Kind) bool { return k == KindString || k == KindSecureString }
func isObjectLike(k Kind) bool { return k == KindObject || k == KindSecureObject }

func objectsEqual(a, b *orderedObject) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.keys) != len(b.keys) {
		return false
	}
	for _, k := range a.keys {
		av, _ := a.get(k)
		bv, ok := b.get(k)
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// FromJSON converts a decoded encoding/json value (as produced by
// json.Unmarshal into interface{}) into a Value tree. Numbers decode to
// Int when they have no fractional part and fit in int64, else the
// conversion fails loudly rather than silently truncating.
func FromJSON(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		if t != float64(int64(t)) {
			return Value{}, fmt.Errorf("non-integer numbers are not supported: %v", t)
		}
		return Int(int64(t)), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("non-integer numbers are not supported: %v", t)
		}
		return Int(i), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			cv, err := FromJSON(e)
			if err != nil {
				return Value{}, err
			}
			items = append(items, cv)
		}
		return Array(items), nil
	case map[string]interface{}:
		if sec, ok := t["secureString"]; ok && len(t) == 1 {
			if s, ok := sec.(string); ok {
				return SecureString(s), nil
			}
		}
		if sec, ok := t["secureObject"]; ok && len(t) == 1 {
			inner, err := FromJSON(sec)
			if err != nil {
				return Value{}, err
			}
			b := NewObject()
			if keys, ok := inner.Keys(); ok {
				for _, k := range keys {
					fv, _ := inner.Field(k)
					b.Set(k, fv)
				}
			}
			return b.BuildSecure(), nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b := NewObject()
		for _, k := range keys {
			cv, err := FromJSON(t[k])
			if err != nil {
				return Value{}, err
			}
			b.Set(k, cv)
		}
		return b.Build(), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %T", v)
	}
}

// toJSON converts back to plain interface{} for marshaling. Secure values
// are rendered in their wire form ({"secureString": "..."} /
// {"secureObject": ...}), matching egress serialization in the spec.
func (v Value) toJSON() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindSecureString:
		return map[string]interface{}{"secureString": v.s}
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.toJSON()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj.keys))
		for _, k := range v.obj.keys {
			fv, _ := v.obj.get(k)
			out[k] = fv.toJSON()
		}
		return out
	case KindSecureObject:
		inner := make(map[string]interface{}, len(v.obj.keys))
		for _, k := range v.obj.keys {
			fv, _ := v.obj.get(k)
			inner[k] = fv.toJSON()
		}
		return map[string]interface{}{"secureObject": inner}
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler using the egress wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler, recognizing the secure-value
// wire forms on ingress.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
