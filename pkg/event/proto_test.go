package event

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtoRoundTripSortsKeys(t *testing.T) {
	orig := sampleEvent()
	b, err := ProtoCodec{}.Encode(orig)
	require.NoError(t, err)

	back, err := ProtoCodec{}.Decode(b)
	require.NoError(t, err)
	require.True(t, orig.Equal(back))
	require.Equal(t, []string{"meta", "price", "symbol", "tags", "timestamp"}, back.Keys())
}

func TestProtoEncodeDeterministic(t *testing.T) {
	a, err := ProtoCodec{}.Encode(New(F("x", Int(1)), F("y", String("z"))))
	require.NoError(t, err)
	b, err := ProtoCodec{}.Encode(New(F("y", String("z")), F("x", Int(1))))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestProtoErrors(t *testing.T) {
	_, err := ProtoCodec{}.Encode(New(F("p", Number(math.NaN()))))
	var ee *EncodingError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "p", ee.Key)

	_, err = ProtoCodec{}.Decode([]byte{0xff, 0xff})
	var de *DecodingError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "proto", de.Codec)
}
