package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// JSONCodec stores events as JSON objects. Keys are written in insertion
// order and decoded in document order. Numbers decode as float64. Strings
// must be valid UTF-8 and values may nest at most MaxDepth levels.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(e Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 * (e.Len() + 1))
	if err := writeJSONObject(&buf, e, true, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type jsonWriter interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

// writeJSONObject writes e; top marks the root object whose keys name
// encoding errors.
func writeJSONObject(w jsonWriter, e Event, top bool, depth int) error {
	_ = w.WriteByte('{')
	for i, f := range e.fields {
		if i > 0 {
			_ = w.WriteByte(',')
		}
		key := ""
		if top {
			key = f.Key
		}
		if err := writeJSONString(w, key, f.Key); err != nil {
			return err
		}
		_ = w.WriteByte(':')
		if err := writeJSONValue(w, key, f.Value, depth+1); err != nil {
			return err
		}
	}
	_ = w.WriteByte('}')
	return nil
}

func writeJSONValue(w jsonWriter, key string, v Value, depth int) error {
	if depth > MaxDepth {
		return &EncodingError{Key: key, Err: ErrTooDeep}
	}
	switch v.kind {
	case KindNull:
		_, _ = w.WriteString("null")
	case KindBool:
		if v.b {
			_, _ = w.WriteString("true")
		} else {
			_, _ = w.WriteString("false")
		}
	case KindNumber:
		if !finite(v.n) {
			return &EncodingError{Key: key, Err: fmt.Errorf("non-finite number %v", v.n)}
		}
		b, err := json.Marshal(v.n)
		if err != nil {
			return &EncodingError{Key: key, Err: err}
		}
		_, _ = w.Write(b)
	case KindString:
		return writeJSONString(w, key, v.s)
	case KindList:
		_ = w.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				_ = w.WriteByte(',')
			}
			if err := writeJSONValue(w, key, item, depth+1); err != nil {
				return err
			}
		}
		_ = w.WriteByte(']')
	case KindObject:
		obj, _ := v.AsObject()
		if err := writeJSONObject(w, obj, false, depth); err != nil {
			var ee *EncodingError
			if errors.As(err, &ee) && ee.Key == "" {
				ee.Key = key
			}
			return err
		}
	default:
		return &EncodingError{Key: key, Err: fmt.Errorf("unknown value kind %d", v.kind)}
	}
	return nil
}

func writeJSONString(w jsonWriter, key, s string) error {
	if !utf8.ValidString(s) {
		return &EncodingError{Key: key, Err: errors.New("string is not valid UTF-8")}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return &EncodingError{Key: key, Err: err}
	}
	_, _ = w.Write(b)
	return nil
}

func (JSONCodec) Decode(b []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Event{}, jsonDecodeErr(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Event{}, jsonDecodeErr(fmt.Errorf("top level is %s, want object", describeToken(tok)))
	}
	e, err := decodeJSONObject(dec, 0)
	if err != nil {
		return Event{}, jsonDecodeErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Event{}, jsonDecodeErr(errors.New("trailing data after object"))
	}
	return e, nil
}

func jsonDecodeErr(err error) error {
	return &DecodingError{Codec: "json", Err: err}
}

// decodeJSONObject reads members after an opening brace through the closing one.
func decodeJSONObject(dec *json.Decoder, depth int) (Event, error) {
	var e Event
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Event{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Event{}, fmt.Errorf("object key is %s", describeToken(tok))
		}
		tok, err = dec.Token()
		if err != nil {
			return Event{}, err
		}
		v, err := decodeJSONValue(dec, tok, depth+1)
		if errors.Is(err, ErrTooDeep) {
			return Event{}, err
		}
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", key, err)
		}
		e.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func decodeJSONValue(dec *json.Decoder, tok json.Token, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, ErrTooDeep
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %s out of range", t.String())
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '{':
			obj, err := decodeJSONObject(dec, depth)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: &obj}, nil
		case '[':
			var items []Value
			for dec.More() {
				next, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				item, err := decodeJSONValue(dec, next, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			if items == nil {
				items = []Value{}
			}
			return List(items...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected %s", describeToken(tok))
}

func describeToken(tok json.Token) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '[' {
			return "array"
		}
		return fmt.Sprintf("%q", t.String())
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	}
	return strings.TrimSpace(fmt.Sprintf("%T", tok))
}
