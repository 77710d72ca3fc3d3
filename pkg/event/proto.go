package event

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoCodec stores events as binary google.protobuf.Struct messages.
// Struct fields are a map, so decoded events list keys in sorted order.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Encode(e Event) ([]byte, error) {
	st, err := toProtoStruct(e, true, 0)
	if err != nil {
		return nil, err
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return b, nil
}

func (ProtoCodec) Decode(b []byte) (Event, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Event{}, &DecodingError{Codec: "proto", Err: err}
	}
	e, err := fromProtoStruct(&st)
	if err != nil {
		return Event{}, &DecodingError{Codec: "proto", Err: err}
	}
	return e, nil
}

func toProtoStruct(e Event, top bool, depth int) (*structpb.Struct, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, e.Len())}
	for _, f := range e.fields {
		key := ""
		if top {
			key = f.Key
		}
		pv, err := toProtoValue(key, f.Value, depth+1)
		if err != nil {
			return nil, err
		}
		st.Fields[f.Key] = pv
	}
	return st, nil
}

func toProtoValue(key string, v Value, depth int) (*structpb.Value, error) {
	if depth > MaxDepth {
		return nil, &EncodingError{Key: key, Err: ErrTooDeep}
	}
	switch v.kind {
	case KindNull:
		return structpb.NewNullValue(), nil
	case KindBool:
		return structpb.NewBoolValue(v.b), nil
	case KindNumber:
		if !finite(v.n) {
			return nil, &EncodingError{Key: key, Err: fmt.Errorf("non-finite number %v", v.n)}
		}
		return structpb.NewNumberValue(v.n), nil
	case KindString:
		return structpb.NewStringValue(v.s), nil
	case KindList:
		lv := &structpb.ListValue{Values: make([]*structpb.Value, len(v.list))}
		for i, item := range v.list {
			pv, err := toProtoValue(key, item, depth+1)
			if err != nil {
				return nil, err
			}
			lv.Values[i] = pv
		}
		return structpb.NewListValue(lv), nil
	case KindObject:
		obj, _ := v.AsObject()
		st, err := toProtoStruct(obj, false, depth)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(st), nil
	}
	return nil, &EncodingError{Key: key, Err: fmt.Errorf("unknown value kind %d", v.kind)}
}

func fromProtoStruct(st *structpb.Struct) (Event, error) {
	keys := make([]string, 0, len(st.GetFields()))
	for k := range st.GetFields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var e Event
	for _, k := range keys {
		v, err := fromProtoValue(st.GetFields()[k])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", k, err)
		}
		e.Set(k, v)
	}
	return e, nil
}

func fromProtoValue(pv *structpb.Value) (Value, error) {
	switch k := pv.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return Null(), nil
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue), nil
	case *structpb.Value_NumberValue:
		return Number(k.NumberValue), nil
	case *structpb.Value_StringValue:
		return String(k.StringValue), nil
	case *structpb.Value_ListValue:
		items := make([]Value, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			v, err := fromProtoValue(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case *structpb.Value_StructValue:
		obj, err := fromProtoStruct(k.StructValue)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: &obj}, nil
	}
	return Value{}, fmt.Errorf("unsupported struct value %T", pv.GetKind())
}
