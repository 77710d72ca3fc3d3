package event

import (
	"errors"
	"fmt"
)

// MaxDepth bounds how deeply lists and objects may nest inside an event.
const MaxDepth = 10000

// ErrTooDeep is wrapped by encoding and decoding errors for values nested
// beyond MaxDepth.
var ErrTooDeep = errors.New("nesting too deep")

// EncodingError reports an event that cannot be serialized.
type EncodingError struct {
	// Key is the top-level field at fault, empty when not field specific.
	Key string
	Err error
}

func (e *EncodingError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("event: encode: %v", e.Err)
	}
	return fmt.Sprintf("event: encode field %q: %v", e.Key, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports stored bytes that are not a valid event.
type DecodingError struct {
	Codec string
	Err   error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("event: decode %s: %v", e.Codec, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }
