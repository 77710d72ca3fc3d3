package logstore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks failures talking to the underlying store.
	ErrUnavailable = errors.New("logstore: store unavailable")
	// ErrUnsupported is returned for capabilities a backend does not provide.
	ErrUnsupported = errors.New("logstore: operation not supported")
)

// OpError records the backend operation that failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("logstore: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is makes every OpError match ErrUnavailable.
func (e *OpError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as a store failure for op. A nil err stays nil and
// ErrUnsupported passes through unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupported) {
		return err
	}
	return &OpError{Op: op, Err: err}
}
