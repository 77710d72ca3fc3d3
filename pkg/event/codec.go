package event

import (
	"fmt"
	"strings"
)

// Codec converts events to and from stored bytes.
type Codec interface {
	Name() string
	Encode(Event) ([]byte, error)
	Decode([]byte) (Event, error)
}

// CodecByName returns the codec registered under name ("json" or "proto").
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "proto", "protobuf":
		return ProtoCodec{}, nil
	}
	return nil, fmt.Errorf("event: unknown codec %q; use json|proto", name)
}
