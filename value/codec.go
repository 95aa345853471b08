package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// EncodedSize returns the number of bytes a fixed-width value of type t
// occupies on disk. For vector types, length is the column's declared
// logical element count. EncodedSize panics for String, which has no
// fixed width.
func EncodedSize(t Type, length int) int {
	if t == String {
		panic("value: String has no fixed encoded size")
	}
	if !t.IsVector() {
		return t.ElementSize()
	}
	return t.ElementSize() * length
}

// EncodeFixed writes v into buf, which must be at least
// EncodedSize(v.Type, v.Len()) bytes long.
func EncodeFixed(buf []byte, v Value) {
	switch v.Type {
	case Boolean:
		if v.bool {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case Byte:
		buf[0] = v.byte
	case Short:
		binary.LittleEndian.PutUint16(buf, uint16(v.short))
	case Int:
		binary.LittleEndian.PutUint32(buf, uint32(v.int32))
	case Long:
		binary.LittleEndian.PutUint64(buf, uint64(v.int64))
	case Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.float32))
	case Double:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.float64))
	case Date:
		binary.LittleEndian.PutUint64(buf, uint64(v.date.UnixMilli()))
	case Complex32:
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(real(v.c64)))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(imag(v.c64)))
	case Complex64:
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(real(v.c128)))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(imag(v.c128)))
	case BooleanVector:
		for i, b := range v.boolVec {
			if b {
				buf[i] = 1
			} else {
				buf[i] = 0
			}
		}
	case ByteVector:
		copy(buf, v.byteVec)
	case ShortVector:
		for i, x := range v.shortVec {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(x))
		}
	case IntVector:
		for i, x := range v.intVec {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(x))
		}
	case LongVector:
		for i, x := range v.longVec {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(x))
		}
	case FloatVector:
		for i, x := range v.floatVec {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
		}
	case DoubleVector:
		for i, x := range v.doubleVec {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
		}
	case Complex32Vector:
		for i, x := range v.c64Vec {
			off := i * 8
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(real(x)))
			binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(imag(x)))
		}
	case Complex64Vector:
		for i, x := range v.c128Vec {
			off := i * 16
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(real(x)))
			binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(imag(x)))
		}
	default:
		panic(fmt.Sprintf("value: EncodeFixed not defined for %s", v.Type))
	}
}

// DecodeFixed reads a value of type t (with the given logical vector
// length, ignored for scalars) from buf.
func DecodeFixed(buf []byte, t Type, length int) Value {
	switch t {
	case Boolean:
		return OfBool(buf[0] != 0)
	case Byte:
		return OfByte(buf[0])
	case Short:
		return OfShort(int16(binary.LittleEndian.Uint16(buf)))
	case Int:
		return OfInt(int32(binary.LittleEndian.Uint32(buf)))
	case Long:
		return OfLong(int64(binary.LittleEndian.Uint64(buf)))
	case Float:
		return OfFloat(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case Double:
		return OfDouble(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	case Date:
		return OfDate(time.UnixMilli(int64(binary.LittleEndian.Uint64(buf))).UTC())
	case Complex32:
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		return OfComplex32(complex(re, im))
	case Complex64:
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
		return OfComplex64(complex(re, im))
	case BooleanVector:
		out := make([]bool, length)
		for i := range out {
			out[i] = buf[i] != 0
		}
		return OfBoolVector(out)
	case ByteVector:
		out := make([]byte, length)
		copy(out, buf[:length])
		return OfByteVector(out)
	case ShortVector:
		out := make([]int16, length)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		return OfShortVector(out)
	case IntVector:
		out := make([]int32, length)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return OfIntVector(out)
	case LongVector:
		out := make([]int64, length)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return OfLongVector(out)
	case FloatVector:
		out := make([]float32, length)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return OfFloatVector(out)
	case DoubleVector:
		out := make([]float64, length)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return OfDoubleVector(out)
	case Complex32Vector:
		out := make([]complex64, length)
		for i := range out {
			off := i * 8
			re := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4:]))
			out[i] = complex(re, im)
		}
		return OfComplex32Vector(out)
	case Complex64Vector:
		out := make([]complex128, length)
		for i := range out {
			off := i * 16
			re := math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:]))
			out[i] = complex(re, im)
		}
		return OfComplex64Vector(out)
	default:
		panic(fmt.Sprintf("value: DecodeFixed not defined for %s", t))
	}
}

// EncodeString returns the UTF-8 bytes of a string value, for writers
// that place strings on the variable-width layout.
func EncodeString(v Value) []byte {
	return []byte(v.str)
}

// DecodeString builds a String value from raw UTF-8 bytes read off the
// variable-width layout.
func DecodeString(b []byte) Value {
	return OfString(string(b))
}
