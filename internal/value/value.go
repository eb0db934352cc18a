// Package value provides the dynamic value model used for experiment
// choices, parameters, and envelope metadata. A Dynamic wraps a cty.Value so
// that reference resolution and YAML/JSON round-tripping are total functions
// over a closed set of kinds: null, bool, number, string, list, and map.
package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Kind enumerates the closed set of value shapes a Dynamic can take.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Dynamic is an immutable dynamically-typed value. The zero value is null.
type Dynamic struct {
	v cty.Value
}

// Null returns the null value.
func Null() Dynamic {
	return Dynamic{cty.NullVal(cty.DynamicPseudoType)}
}

// String wraps a string.
func String(s string) Dynamic {
	return Dynamic{cty.StringVal(s)}
}

// Bool wraps a bool.
func Bool(b bool) Dynamic {
	return Dynamic{cty.BoolVal(b)}
}

// Int wraps an integer.
func Int(i int64) Dynamic {
	return Dynamic{cty.NumberIntVal(i)}
}

// Float wraps a float.
func Float(f float64) Dynamic {
	return Dynamic{cty.NumberFloatVal(f)}
}

// List builds a list value from the given elements.
func List(elems []Dynamic) Dynamic {
	if len(elems) == 0 {
		return Dynamic{cty.EmptyTupleVal}
	}
	vals := make([]cty.Value, len(elems))
	for i, e := range elems {
		vals[i] = e.norm()
	}
	return Dynamic{cty.TupleVal(vals)}
}

// Map builds a map value from the given entries.
func Map(entries map[string]Dynamic) Dynamic {
	if len(entries) == 0 {
		return Dynamic{cty.EmptyObjectVal}
	}
	vals := make(map[string]cty.Value, len(entries))
	for k, v := range entries {
		vals[k] = v.norm()
	}
	return Dynamic{cty.ObjectVal(vals)}
}

// FromGo converts a native Go value (as produced by yaml.v3 or encoding/json
// decoding into any) to a Dynamic. Unsupported types are an error, which
// keeps the value model closed.
func FromGo(x any) (Dynamic, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Dynamic:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case time.Time:
		return String(t.UTC().Format(time.RFC3339)), nil
	case []any:
		elems := make([]Dynamic, len(t))
		for i, item := range t {
			d, err := FromGo(item)
			if err != nil {
				return Null(), fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = d
		}
		return List(elems), nil
	case map[string]any:
		entries := make(map[string]Dynamic, len(t))
		for k, item := range t {
			d, err := FromGo(item)
			if err != nil {
				return Null(), fmt.Errorf("key %q: %w", k, err)
			}
			entries[k] = d
		}
		return Map(entries), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", x)
	}
}

// MustFromGo is FromGo for values known to be convertible; it panics
// otherwise. Intended for fixtures and tests.
func MustFromGo(x any) Dynamic {
	d, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return d
}

// norm maps the zero Dynamic onto the canonical null representation.
func (d Dynamic) norm() cty.Value {
	if d.v.Type() == cty.NilType {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return d.v
}

// Kind reports the shape of the value.
func (d Dynamic) Kind() Kind {
	v := d.norm()
	if v.IsNull() {
		return KindNull
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return KindBool
	case ty == cty.Number:
		return KindNumber
	case ty == cty.String:
		return KindString
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		return KindList
	case ty.IsObjectType() || ty.IsMapType():
		return KindMap
	default:
		return KindNull
	}
}

// IsNull reports whether the value is null.
func (d Dynamic) IsNull() bool {
	return d.norm().IsNull()
}

// IsString reports whether the value is a string.
func (d Dynamic) IsString() bool {
	return d.Kind() == KindString
}

// AsString returns the wrapped string. It panics on non-string values, so
// callers must check Kind first.
func (d Dynamic) AsString() string {
	return d.norm().AsString()
}

// Elements returns list elements in order. Non-list values yield nil.
func (d Dynamic) Elements() []Dynamic {
	if d.Kind() != KindList {
		return nil
	}
	var elems []Dynamic
	it := d.norm().ElementIterator()
	for it.Next() {
		_, ev := it.Element()
		elems = append(elems, Dynamic{ev})
	}
	return elems
}

// Keys returns map keys in lexicographic order. Non-map values yield nil.
func (d Dynamic) Keys() []string {
	if d.Kind() != KindMap {
		return nil
	}
	var keys []string
	it := d.norm().ElementIterator()
	for it.Next() {
		kv, _ := it.Element()
		keys = append(keys, kv.AsString())
	}
	sort.Strings(keys)
	return keys
}

// Index returns the map entry for key, or null if absent.
func (d Dynamic) Index(key string) Dynamic {
	if d.Kind() != KindMap {
		return Null()
	}
	it := d.norm().ElementIterator()
	for it.Next() {
		kv, ev := it.Element()
		if kv.AsString() == key {
			return Dynamic{ev}
		}
	}
	return Null()
}

// Equal reports deep equality between two values.
func (d Dynamic) Equal(o Dynamic) bool {
	return d.norm().RawEquals(o.norm())
}

// ToGo converts the value back to its native Go representation. Numbers come
// back as int64 when integral and float64 otherwise.
func (d Dynamic) ToGo() any {
	v := d.norm()
	if v.IsNull() {
		return nil
	}
	switch d.Kind() {
	case KindBool:
		return v.True()
	case KindString:
		return v.AsString()
	case KindNumber:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i
		}
		f, _ := bf.Float64()
		return f
	case KindList:
		out := make([]any, 0)
		for _, e := range d.Elements() {
			out = append(out, e.ToGo())
		}
		return out
	case KindMap:
		out := make(map[string]any)
		for _, k := range d.Keys() {
			out[k] = d.Index(k).ToGo()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (d Dynamic) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToGo())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dynamic) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	parsed, err := FromGo(x)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Dynamic) MarshalYAML() (any, error) {
	return d.ToGo(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Dynamic) UnmarshalYAML(node *yaml.Node) error {
	var x any
	if err := node.Decode(&x); err != nil {
		return err
	}
	parsed, err := FromGo(x)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GoMap converts a map of Dynamics to its native Go form. Nil maps convert
// to an empty map so serialized documents never carry null object fields.
func GoMap(m map[string]Dynamic) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.ToGo()
	}
	return out
}

// FromGoMap converts a decoded JSON/YAML object into a map of Dynamics.
func FromGoMap(m map[string]any) (map[string]Dynamic, error) {
	out := make(map[string]Dynamic, len(m))
	for k, v := range m {
		d, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}
