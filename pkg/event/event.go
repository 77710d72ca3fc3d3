package event

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"reflect"
	"sort"
)

// Field is one key/value pair of an Event.
type Field struct {
	Key   string
	Value Value
}

// F builds a Field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Event is an insertion-ordered string-keyed mapping. The zero Event is empty
// and ready to use.
type Event struct {
	fields []Field
}

// TimestampField is the conventional ordering key.
const TimestampField = "timestamp"

// New builds an event from fields; later duplicates replace earlier ones.
func New(fields ...Field) Event {
	var e Event
	for _, f := range fields {
		e.Set(f.Key, f.Value)
	}
	return e
}

// Set stores v under key. An existing key keeps its position.
func (e *Event) Set(key string, v Value) {
	for i := range e.fields {
		if e.fields[i].Key == key {
			e.fields[i].Value = v
			return
		}
	}
	e.fields = append(e.fields, Field{Key: key, Value: v})
}

// Get returns the value under key.
func (e Event) Get(key string) (Value, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Timestamp returns the conventional "timestamp" field.
func (e Event) Timestamp() (Value, bool) { return e.Get(TimestampField) }

func (e Event) Len() int { return len(e.fields) }

// Keys returns keys in insertion order.
func (e Event) Keys() []string {
	keys := make([]string, len(e.fields))
	for i, f := range e.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the fields in insertion order.
func (e Event) Fields() []Field { return append([]Field(nil), e.fields...) }

// All iterates fields in insertion order.
func (e Event) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, f := range e.fields {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}
}

// Clone returns an event that shares no field storage with e.
func (e Event) Clone() Event {
	return Event{fields: append([]Field(nil), e.fields...)}
}

// Equal compares keys and values, ignoring key order.
func (e Event) Equal(o Event) bool {
	if e.Len() != o.Len() {
		return false
	}
	for _, f := range e.fields {
		ov, ok := o.Get(f.Key)
		if !ok || !f.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// ToMap converts the event to plain Go values.
func (e Event) ToMap() map[string]any {
	out := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		out[f.Key] = f.Value.Interface()
	}
	return out
}

// MarshalJSON encodes the event as a JSON object in insertion order.
func (e Event) MarshalJSON() ([]byte, error) { return JSONCodec{}.Encode(e) }

// UnmarshalJSON decodes a JSON object preserving document key order.
func (e *Event) UnmarshalJSON(b []byte) error {
	ev, err := JSONCodec{}.Decode(b)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// FromMap builds an event from plain Go values. Map keys are sorted since Go
// maps carry no order.
func FromMap(m map[string]any) (Event, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var e Event
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return Event{}, &EncodingError{Key: k, Err: err}
		}
		e.Set(k, v)
	}
	return e, nil
}

// ValueOf converts a Go value into a Value. Supported inputs are nil, bool,
// integers, finite floats, string, json.Number, Value, Event, slices and maps
// with string keys.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Event:
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		if !finite(t) {
			return Value{}, fmt.Errorf("non-finite number %v", t)
		}
		return Number(t), nil
	case float32:
		return ValueOf(float64(t))
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil || !finite(f) {
			return Value{}, fmt.Errorf("invalid number %q", t.String())
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		e, err := FromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: &e}, nil
	}
	return reflectValue(reflect.ValueOf(x))
}

func reflectValue(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Number(float64(u)), nil
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return ValueOf(rv.Float())
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return ValueOf(m)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("unsupported type %s", rv.Type())
}
