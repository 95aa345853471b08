// Package exec turns a planner.Physical tree into a pull-based
// value.Iterator pipeline, per spec.md §4.8: entity scans and index
// filters at the leaves, breakers (sort, aggregation, kNN) that
// consume their child fully before emitting a single record.
package exec

import (
	"math"

	"hareql.dev/value"
)

// ToFloat64Vector widens any of the engine's numeric vector types to
// []float64, the common currency every distance kernel computes in.
// Returns nil for a scalar or non-numeric value.
func ToFloat64Vector(v value.Value) []float64 {
	switch v.Type {
	case value.ByteVector:
		src := v.ByteVector()
		out := make([]float64, len(src))
		for i, b := range src {
			out[i] = float64(b)
		}
		return out
	case value.ShortVector:
		src := v.ShortVector()
		out := make([]float64, len(src))
		for i, s := range src {
			out[i] = float64(s)
		}
		return out
	case value.IntVector:
		src := v.IntVector()
		out := make([]float64, len(src))
		for i, n := range src {
			out[i] = float64(n)
		}
		return out
	case value.LongVector:
		src := v.LongVector()
		out := make([]float64, len(src))
		for i, n := range src {
			out[i] = float64(n)
		}
		return out
	case value.FloatVector:
		src := v.FloatVector()
		out := make([]float64, len(src))
		for i, f := range src {
			out[i] = float64(f)
		}
		return out
	case value.DoubleVector:
		return v.DoubleVector()
	default:
		return nil
	}
}

// Distance computes d(a, b) for the requested kernel. Every kernel is
// a simple, SIMD-amenable single pass over the shorter of the two
// slices — no allocation, no branching inside the loop body beyond
// what the kernel itself needs.
func Distance(d value.Distance, a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	switch d {
	case value.L1:
		return l1(a, b, n)
	case value.L2:
		return math.Sqrt(l2Squared(a, b, n))
	case value.L2Squared:
		return l2Squared(a, b, n)
	case value.Cosine:
		return cosine(a, b, n)
	case value.InnerProduct:
		return -innerProduct(a, b, n)
	case value.Hamming:
		return hamming(a, b, n)
	case value.ChiSquared:
		return chiSquared(a, b, n)
	default:
		return l2Squared(a, b, n)
	}
}

func l1(a, b []float64, n int) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return sum
}

func l2Squared(a, b []float64, n int) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func innerProduct(a, b []float64, n int) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// cosine returns 1 - cosine similarity, so smaller is closer, matching
// every other kernel's convention.
func cosine(a, b []float64, n int) float64 {
	dot := innerProduct(a, b, n)
	var na, nb float64
	for i := 0; i < n; i++ {
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// hamming counts differing positions, treating each component as
// equal iff numerically equal — the bit/byte-vector kernel.
func hamming(a, b []float64, n int) float64 {
	var count float64
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			count++
		}
	}
	return count
}

func chiSquared(a, b []float64, n int) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		s := a[i] + b[i]
		if s == 0 {
			continue
		}
		diff := a[i] - b[i]
		sum += (diff * diff) / s
	}
	return sum
}
