package event

import (
	"math"
	"strings"
)

// Kind enumerates the value variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON-representable value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	obj  *Event
}

func Null() Value               { return Value{} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(f float64) Value    { return Value{kind: KindNumber, n: f} }
func Int(i int64) Value         { return Value{kind: KindNumber, n: float64(i)} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Object wraps a nested event. The event is copied.
func Object(e Event) Value {
	c := e.Clone()
	return Value{kind: KindObject, obj: &c}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }

// AsObject returns the nested event of an object value.
func (v Value) AsObject() (Event, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Event{}, v.kind == KindObject
	}
	return *v.obj, true
}

// Equal reports deep equality. Numbers compare numerically and object key
// order is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		a, _ := v.AsObject()
		b, _ := o.AsObject()
		return a.Equal(b)
	}
	return false
}

// Interface converts the value to plain Go types: nil, bool, float64,
// string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		e, _ := v.AsObject()
		return e.ToMap()
	}
	return nil
}

// String renders the value as JSON. Invalid values render as their kind.
func (v Value) String() string {
	var sb strings.Builder
	if err := writeJSONValue(&sb, "", v, 0); err != nil {
		return "<" + v.kind.String() + ">"
	}
	return sb.String()
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
