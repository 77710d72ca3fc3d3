package logstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnavailableWrapping(t *testing.T) {
	require.NoError(t, Unavailable("xadd", nil))

	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("xadd", cause)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "xadd")

	var op *OpError
	require.ErrorAs(t, err, &op)
	require.Equal(t, "xadd", op.Op)
}

func TestUnavailableKeepsUnsupported(t *testing.T) {
	err := Unavailable("xtrim", ErrUnsupported)
	require.ErrorIs(t, err, ErrUnsupported)
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestUnavailableKeepsContextCause(t *testing.T) {
	err := Unavailable("range", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, ErrUnavailable)
}
