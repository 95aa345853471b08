package value

import (
	"fmt"
	"math"
	"time"
)

// Value is a typed, possibly-null scalar or vector. Exactly the field(s)
// matching Type are meaningful; the rest are zero. A flat struct (rather
// than an interface per kind) keeps hot paths like distance kernels and
// column codecs allocation-free.
type Value struct {
	Type Type
	Null bool

	bool    bool
	byte    byte
	short   int16
	int32   int32
	int64   int64
	float32 float32
	float64 float64
	date    time.Time
	str     string
	c64     complex64
	c128    complex128

	boolVec    []bool
	byteVec    []byte
	shortVec   []int16
	intVec     []int32
	longVec    []int64
	floatVec   []float32
	doubleVec  []float64
	c64Vec     []complex64
	c128Vec    []complex128
}

// NullOf returns the null value of the given type.
func NullOf(t Type) Value { return Value{Type: t, Null: true} }

func OfBool(v bool) Value       { return Value{Type: Boolean, bool: v} }
func OfByte(v byte) Value       { return Value{Type: Byte, byte: v} }
func OfShort(v int16) Value     { return Value{Type: Short, short: v} }
func OfInt(v int32) Value       { return Value{Type: Int, int32: v} }
func OfLong(v int64) Value      { return Value{Type: Long, int64: v} }
func OfFloat(v float32) Value   { return Value{Type: Float, float32: v} }
func OfDouble(v float64) Value  { return Value{Type: Double, float64: v} }
func OfDate(v time.Time) Value  { return Value{Type: Date, date: v} }
func OfString(v string) Value   { return Value{Type: String, str: v} }
func OfComplex32(v complex64) Value  { return Value{Type: Complex32, c64: v} }
func OfComplex64(v complex128) Value { return Value{Type: Complex64, c128: v} }

func OfBoolVector(v []bool) Value       { return Value{Type: BooleanVector, boolVec: v} }
func OfByteVector(v []byte) Value       { return Value{Type: ByteVector, byteVec: v} }
func OfShortVector(v []int16) Value     { return Value{Type: ShortVector, shortVec: v} }
func OfIntVector(v []int32) Value       { return Value{Type: IntVector, intVec: v} }
func OfLongVector(v []int64) Value      { return Value{Type: LongVector, longVec: v} }
func OfFloatVector(v []float32) Value   { return Value{Type: FloatVector, floatVec: v} }
func OfDoubleVector(v []float64) Value  { return Value{Type: DoubleVector, doubleVec: v} }
func OfComplex32Vector(v []complex64) Value  { return Value{Type: Complex32Vector, c64Vec: v} }
func OfComplex64Vector(v []complex128) Value { return Value{Type: Complex64Vector, c128Vec: v} }

func (v Value) Bool() bool         { return v.bool }
func (v Value) Byte() byte         { return v.byte }
func (v Value) Short() int16       { return v.short }
func (v Value) Int() int32         { return v.int32 }
func (v Value) Long() int64        { return v.int64 }
func (v Value) Float() float32     { return v.float32 }
func (v Value) Double() float64    { return v.float64 }
func (v Value) Date() time.Time    { return v.date }
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	if v.Type == String {
		return v.str
	}
	return fmt.Sprintf("%v", v.asAny())
}
func (v Value) Str() string            { return v.str }
func (v Value) Complex32() complex64   { return v.c64 }
func (v Value) Complex64() complex128  { return v.c128 }

func (v Value) BoolVector() []bool            { return v.boolVec }
func (v Value) ByteVector() []byte            { return v.byteVec }
func (v Value) ShortVector() []int16          { return v.shortVec }
func (v Value) IntVector() []int32            { return v.intVec }
func (v Value) LongVector() []int64           { return v.longVec }
func (v Value) FloatVector() []float32        { return v.floatVec }
func (v Value) DoubleVector() []float64       { return v.doubleVec }
func (v Value) Complex32Vector() []complex64  { return v.c64Vec }
func (v Value) Complex64Vector() []complex128 { return v.c128Vec }

// Len returns the logical element count of a vector value, or 0 for
// scalars.
func (v Value) Len() int {
	switch v.Type {
	case BooleanVector:
		return len(v.boolVec)
	case ByteVector:
		return len(v.byteVec)
	case ShortVector:
		return len(v.shortVec)
	case IntVector:
		return len(v.intVec)
	case LongVector:
		return len(v.longVec)
	case FloatVector:
		return len(v.floatVec)
	case DoubleVector:
		return len(v.doubleVec)
	case Complex32Vector:
		return len(v.c64Vec)
	case Complex64Vector:
		return len(v.c128Vec)
	default:
		return 0
	}
}

func (v Value) asAny() any {
	switch v.Type {
	case Boolean:
		return v.bool
	case Byte:
		return v.byte
	case Short:
		return v.short
	case Int:
		return v.int32
	case Long:
		return v.int64
	case Float:
		return v.float32
	case Double:
		return v.float64
	case Date:
		return v.date
	case String:
		return v.str
	case Complex32:
		return v.c64
	case Complex64:
		return v.c128
	case BooleanVector:
		return v.boolVec
	case ByteVector:
		return v.byteVec
	case ShortVector:
		return v.shortVec
	case IntVector:
		return v.intVec
	case LongVector:
		return v.longVec
	case FloatVector:
		return v.floatVec
	case DoubleVector:
		return v.doubleVec
	case Complex32Vector:
		return v.c64Vec
	case Complex64Vector:
		return v.c128Vec
	default:
		return nil
	}
}

// AsFloat64 widens any numeric scalar to float64, for use by predicate
// evaluation and cost estimation where the original width doesn't
// matter. It panics if v is a vector, string, or complex value;
// nullness is not checked, so a null numeric value widens to 0.
func (v Value) AsFloat64() float64 {
	switch v.Type {
	case Boolean:
		if v.bool {
			return 1
		}
		return 0
	case Byte:
		return float64(v.byte)
	case Short:
		return float64(v.short)
	case Int:
		return float64(v.int32)
	case Long:
		return float64(v.int64)
	case Float:
		return float64(v.float32)
	case Double:
		return v.float64
	case Date:
		return float64(v.date.UnixNano())
	default:
		panic(fmt.Sprintf("value: AsFloat64 not defined for %s", v.Type))
	}
}

// Compare orders two non-null, non-vector values of the same type.
// It returns a negative number, zero, or a positive number as a < b,
// a == b, or a > b.
func Compare(a, b Value) int {
	if a.Type != b.Type {
		panic(fmt.Sprintf("value: cannot compare %s with %s", a.Type, b.Type))
	}
	if a.Type == String {
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	}
	if a.Type == Date {
		switch {
		case a.date.Before(b.date):
			return -1
		case a.date.After(b.date):
			return 1
		default:
			return 0
		}
	}
	af, bf := a.AsFloat64(), b.AsFloat64()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b carry the same type, nullness, and
// content.
func Equal(a, b Value) bool {
	if a.Type != b.Type || a.Null != b.Null {
		return false
	}
	if a.Null {
		return true
	}
	if a.Type.IsVector() {
		return vectorEqual(a, b)
	}
	if a.Type == String {
		return a.str == b.str
	}
	if a.Type == Date {
		return a.date.Equal(b.date)
	}
	return Compare(a, b) == 0
}

func vectorEqual(a, b Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	switch a.Type {
	case BooleanVector:
		for i := range a.boolVec {
			if a.boolVec[i] != b.boolVec[i] {
				return false
			}
		}
	case ByteVector:
		for i := range a.byteVec {
			if a.byteVec[i] != b.byteVec[i] {
				return false
			}
		}
	case ShortVector:
		for i := range a.shortVec {
			if a.shortVec[i] != b.shortVec[i] {
				return false
			}
		}
	case IntVector:
		for i := range a.intVec {
			if a.intVec[i] != b.intVec[i] {
				return false
			}
		}
	case LongVector:
		for i := range a.longVec {
			if a.longVec[i] != b.longVec[i] {
				return false
			}
		}
	case FloatVector:
		for i := range a.floatVec {
			if a.floatVec[i] != b.floatVec[i] && !(math.IsNaN(float64(a.floatVec[i])) && math.IsNaN(float64(b.floatVec[i]))) {
				return false
			}
		}
	case DoubleVector:
		for i := range a.doubleVec {
			if a.doubleVec[i] != b.doubleVec[i] && !(math.IsNaN(a.doubleVec[i]) && math.IsNaN(b.doubleVec[i])) {
				return false
			}
		}
	case Complex32Vector:
		for i := range a.c64Vec {
			if a.c64Vec[i] != b.c64Vec[i] {
				return false
			}
		}
	case Complex64Vector:
		for i := range a.c128Vec {
			if a.c128Vec[i] != b.c128Vec[i] {
				return false
			}
		}
	}
	return true
}
