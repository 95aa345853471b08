package exec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"hareql.dev/value"
)

func TestDistanceKernels(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}

	require.InDelta(t, 2.0, Distance(value.L1, a, b), 1e-9)
	require.InDelta(t, 2.0, Distance(value.L2Squared, a, b), 1e-9)
	require.InDelta(t, 1.41421356, Distance(value.L2, a, b), 1e-6)
	require.InDelta(t, 1.0, Distance(value.Cosine, a, b), 1e-9)
	require.InDelta(t, 0.0, Distance(value.InnerProduct, a, b), 1e-9)
	require.InDelta(t, 2.0, Distance(value.Hamming, a, b), 1e-9)
}

func TestDistanceIdenticalVectorsAreZero(t *testing.T) {
	v := []float64{3, 4, 5}
	require.Zero(t, Distance(value.L2, v, v))
	require.Zero(t, Distance(value.L1, v, v))
	require.Zero(t, Distance(value.ChiSquared, v, v))
}

func TestToFloat64VectorWidensEveryNumericKind(t *testing.T) {
	require.Equal(t, []float64{1, 2, 3}, ToFloat64Vector(value.OfByteVector([]byte{1, 2, 3})))
	require.Equal(t, []float64{1, 2, 3}, ToFloat64Vector(value.OfIntVector([]int32{1, 2, 3})))
	require.Equal(t, []float64{1, 2, 3}, ToFloat64Vector(value.OfFloatVector([]float32{1, 2, 3})))
	require.Equal(t, []float64{1, 2, 3}, ToFloat64Vector(value.OfDoubleVector([]float64{1, 2, 3})))
	require.Nil(t, ToFloat64Vector(value.OfInt(5)))
}
