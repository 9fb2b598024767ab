package stallone

import "fmt"

// Ref is an opaque handle to an object living in the foreign object space.
// ID 0 is the null reference.
type Ref struct {
	// ID identifies the object in the space's handle table.
	ID int64 `msgpack:"id" json:"id"`

	// Class is the object's runtime class name as reported by the space.
	Class string `msgpack:"class" json:"class"`
}

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool {
	return r.ID == 0
}

func (r Ref) String() string {
	if r.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s@%d", r.Class, r.ID)
}

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	ValueNull    ValueKind = "null"
	ValueBool    ValueKind = "bool"
	ValueInt     ValueKind = "int"
	ValueDouble  ValueKind = "double"
	ValueString  ValueKind = "string"
	ValueRef     ValueKind = "ref"
	ValueInts    ValueKind = "ints"
	ValueDoubles ValueKind = "doubles"
	ValueStrings ValueKind = "strings"
	ValueItems   ValueKind = "items"
)

// Value is an argument or result crossing the object-space boundary.
// Two-dimensional arrays travel as ValueItems whose items are row values.
type Value struct {
	Kind    ValueKind `msgpack:"kind"`
	Bool    bool      `msgpack:"bool,omitempty"`
	Int     int64     `msgpack:"int,omitempty"`
	Double  float64   `msgpack:"double,omitempty"`
	Str     string    `msgpack:"str,omitempty"`
	Ref     Ref       `msgpack:"ref"`
	Ints    []int32   `msgpack:"ints,omitempty"`
	Doubles []float64 `msgpack:"doubles,omitempty"`
	Strings []string  `msgpack:"strings,omitempty"`
	Items   []Value   `msgpack:"items,omitempty"`
}

// Null is the null value.
var Null = Value{Kind: ValueNull}

// Constructors for each Value variant.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }
func DoubleValue(d float64) Value { return Value{Kind: ValueDouble, Double: d} }
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func RefValue(r Ref) Value { return Value{Kind: ValueRef, Ref: r} }
func IntsValue(v []int32) Value { return Value{Kind: ValueInts, Ints: v} }
func DoublesValue(v []float64) Value { return Value{Kind: ValueDoubles, Doubles: v} }
func StringsValue(v []string) Value { return Value{Kind: ValueStrings, Strings: v} }
func ItemsValue(items []Value) Value { return Value{Kind: ValueItems, Items: items} }

// AsInt returns the value as an integer. Doubles with no fractional part are
// accepted since some bridges encode every number as a double.
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case ValueInt:
		return v.Int, nil
	case ValueDouble:
		if v.Double == float64(int64(v.Double)) {
			return int64(v.Double), nil
		}
	}
	return 0, newError(PhaseBridge, KindTypeMismatch, "expected int, got %s", v.Kind)
}

// AsDouble returns the value as a float64.
func (v Value) AsDouble() (float64, error) {
	switch v.Kind {
	case ValueDouble:
		return v.Double, nil
	case ValueInt:
		return float64(v.Int), nil
	}
	return 0, newError(PhaseBridge, KindTypeMismatch, "expected double, got %s", v.Kind)
}

// AsRef returns the value as an object reference.
func (v Value) AsRef() (Ref, error) {
	switch v.Kind {
	case ValueRef:
		return v.Ref, nil
	case ValueNull:
		return Ref{}, nil
	}
	return Ref{}, newError(PhaseBridge, KindTypeMismatch, "expected object reference, got %s", v.Kind)
}

// AsBool returns the value as a bool.
func (v Value) AsBool() (bool, error) {
	if v.Kind == ValueBool {
		return v.Bool, nil
	}
	return false, newError(PhaseBridge, KindTypeMismatch, "expected bool, got %s", v.Kind)
}

// ToValue converts a Go value to a Value. Supported inputs are nil, bool,
// Go integer and float kinds, string, Ref, Value, *ForeignObject,
// *ForeignArray, []int32, []float64 and []string.
func ToValue(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return v, nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case float32:
		return DoubleValue(float64(v)), nil
	case float64:
		return DoubleValue(v), nil
	case string:
		return StringValue(v), nil
	case Ref:
		return RefValue(v), nil
	case *ForeignObject:
		return RefValue(v.Ref), nil
	case *ForeignArray:
		return RefValue(v.Ref), nil
	case []int32:
		return IntsValue(v), nil
	case []float64:
		return DoublesValue(v), nil
	case []string:
		return StringsValue(v), nil
	}
	return Value{}, newError(PhaseBridge, KindTypeMismatch, "cannot pass %T to the foreign space", x)
}
