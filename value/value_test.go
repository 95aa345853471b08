package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompareOrdersScalars(t *testing.T) {
	require.Negative(t, Compare(OfInt(1), OfInt(2)))
	require.Zero(t, Compare(OfDouble(3.5), OfDouble(3.5)))
	require.Positive(t, Compare(OfString("b"), OfString("a")))

	now := time.Now()
	require.Negative(t, Compare(OfDate(now), OfDate(now.Add(time.Hour))))
}

func TestEqualHandlesVectorsAndNull(t *testing.T) {
	require.True(t, Equal(OfFloatVector([]float32{1, 2, 3}), OfFloatVector([]float32{1, 2, 3})))
	require.False(t, Equal(OfFloatVector([]float32{1, 2, 3}), OfFloatVector([]float32{1, 2, 4})))
	require.True(t, Equal(NullOf(Int), NullOf(Int)))
	require.False(t, Equal(NullOf(Int), OfInt(0)))
}

func TestFixedCodecRoundTripScalars(t *testing.T) {
	cases := []Value{
		OfBool(true),
		OfByte(200),
		OfShort(-1234),
		OfInt(-99999),
		OfLong(1 << 40),
		OfFloat(3.25),
		OfDouble(-2.5),
		OfComplex32(complex(1, 2)),
		OfComplex64(complex(1.5, -2.5)),
	}
	for _, v := range cases {
		buf := make([]byte, EncodedSize(v.Type, 0))
		EncodeFixed(buf, v)
		got := DecodeFixed(buf, v.Type, 0)
		require.True(t, Equal(v, got), "round trip mismatch for %s", v.Type)
	}
}

func TestFixedCodecRoundTripVectors(t *testing.T) {
	v := OfFloatVector([]float32{1.5, -2.25, 0, 1e10})
	buf := make([]byte, EncodedSize(v.Type, v.Len()))
	EncodeFixed(buf, v)
	got := DecodeFixed(buf, v.Type, v.Len())
	require.True(t, Equal(v, got))

	dv := OfDoubleVector([]float64{1, 2, 3, 4, 5})
	buf2 := make([]byte, EncodedSize(dv.Type, dv.Len()))
	EncodeFixed(buf2, dv)
	got2 := DecodeFixed(buf2, dv.Type, dv.Len())
	require.True(t, Equal(dv, got2))
}

func TestStringCodecRoundTrip(t *testing.T) {
	v := OfString("hareql")
	got := DecodeString(EncodeString(v))
	require.True(t, Equal(v, got))
}

func TestRecordAccessors(t *testing.T) {
	r := NewRecord(42, []Value{OfInt(1), OfString("x")})
	require.Equal(t, TupleId(42), r.Tid)
	require.Equal(t, 2, r.Arity())
	require.Equal(t, int32(1), r.Get(0).Int())
}
