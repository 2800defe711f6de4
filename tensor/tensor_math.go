// tensor_math.go - Elementweise Operationen mit Broadcasting
//
// Enthaelt:
// - Add, Sub, Mul, Div, Max, Min, Pow: binaere Operationen
// - Sqrt, Exp, Log, Neg, Abs, Square: unaere Operationen
// - AddScalar, MulScalar, DivScalar, ClipScalar: Skalar-Operationen
//
// Binaere Operationen folgen den ueblichen NumPy-Broadcasting-Regeln:
// Shapes werden rechtsbuendig ausgerichtet, Dimensionen muessen gleich
// oder 1 sein.
package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// resultDtype keeps a common dtype and widens mixed operands to f32.
func resultDtype(a, b *Array) Dtype {
	if a.dtype == b.dtype {
		return a.dtype
	}
	return DtypeFloat32
}

// broadcastShape computes the common shape of two operands.
func broadcastShape(a, b []int32) []int32 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int32, n)
	for i := 1; i <= n; i++ {
		da, db := int32(1), int32(1)
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		case db == 1:
			out[n-i] = da
		default:
			panic(fmt.Sprintf("tensor: shapes %v and %v do not broadcast", a, b))
		}
	}
	return out
}

// broadcastStrides computes row-major strides for src viewed as dst,
// with stride 0 on broadcast dimensions.
func broadcastStrides(src, dst []int32) []int {
	strides := make([]int, len(dst))
	stride := 1
	for i := len(src) - 1; i >= 0; i-- {
		j := i + len(dst) - len(src)
		if src[i] == 1 && dst[j] != 1 {
			strides[j] = 0
		} else {
			strides[j] = stride
		}
		stride *= int(src[i])
	}
	return strides
}

// binaryOp applies op elementwise over the broadcast of a and b.
func binaryOp(a, b *Array, op func(x, y float32) float32) *Array {
	if shapeEqual(a.shape, b.shape) {
		out := &Array{data: make([]float32, len(a.data)), shape: a.Shape(), dtype: resultDtype(a, b)}
		parallelFor(len(out.data), func(start, end int) {
			for i := start; i < end; i++ {
				out.data[i] = op(a.data[i], b.data[i])
			}
		})
		return out
	}

	shape := broadcastShape(a.shape, b.shape)
	aStr := broadcastStrides(a.shape, shape)
	bStr := broadcastStrides(b.shape, shape)
	out := &Array{data: make([]float32, numElements(shape)), shape: shape, dtype: resultDtype(a, b)}

	// Odometer walk, offsets are updated incrementally per axis.
	idx := make([]int32, len(shape))
	ai, bi := 0, 0
	for i := range out.data {
		out.data[i] = op(a.data[ai], b.data[bi])
		for axis := len(shape) - 1; axis >= 0; axis-- {
			idx[axis]++
			ai += aStr[axis]
			bi += bStr[axis]
			if idx[axis] < shape[axis] {
				break
			}
			idx[axis] = 0
			ai -= int(shape[axis]) * aStr[axis]
			bi -= int(shape[axis]) * bStr[axis]
		}
	}
	return out
}

// unaryOp applies op elementwise.
func unaryOp(a *Array, op func(x float32) float32) *Array {
	out := &Array{data: make([]float32, len(a.data)), shape: a.Shape(), dtype: a.dtype}
	parallelFor(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = op(a.data[i])
		}
	})
	return out
}

// ==== Binaere Operationen ====

// Add returns a + b with broadcasting.
func Add(a, b *Array) *Array {
	return binaryOp(a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func Sub(a, b *Array) *Array {
	return binaryOp(a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b with broadcasting.
func Mul(a, b *Array) *Array {
	return binaryOp(a, b, func(x, y float32) float32 { return x * y })
}

// Div returns a / b with broadcasting.
func Div(a, b *Array) *Array {
	return binaryOp(a, b, func(x, y float32) float32 { return x / y })
}

// Max returns the elementwise maximum of a and b with broadcasting.
func Max(a, b *Array) *Array {
	return binaryOp(a, b, math32.Max)
}

// Min returns the elementwise minimum of a and b with broadcasting.
func Min(a, b *Array) *Array {
	return binaryOp(a, b, math32.Min)
}

// Pow returns a ** b with broadcasting.
func Pow(a, b *Array) *Array {
	return binaryOp(a, b, math32.Pow)
}

// ==== Unaere Operationen ====

// Sqrt returns the elementwise square root.
func Sqrt(a *Array) *Array {
	return unaryOp(a, math32.Sqrt)
}

// Exp returns the elementwise exponential.
func Exp(a *Array) *Array {
	return unaryOp(a, math32.Exp)
}

// Log returns the elementwise natural logarithm.
func Log(a *Array) *Array {
	return unaryOp(a, math32.Log)
}

// Neg returns the elementwise negation.
func Neg(a *Array) *Array {
	return unaryOp(a, func(x float32) float32 { return -x })
}

// Abs returns the elementwise absolute value.
func Abs(a *Array) *Array {
	return unaryOp(a, math32.Abs)
}

// Square returns the elementwise square.
func Square(a *Array) *Array {
	return unaryOp(a, func(x float32) float32 { return x * x })
}

// ==== Skalar-Operationen ====

// AddScalar returns a + s.
func AddScalar(a *Array, s float32) *Array {
	return unaryOp(a, func(x float32) float32 { return x + s })
}

// MulScalar returns a * s.
func MulScalar(a *Array, s float32) *Array {
	return unaryOp(a, func(x float32) float32 { return x * s })
}

// DivScalar returns a / s.
func DivScalar(a *Array, s float32) *Array {
	return unaryOp(a, func(x float32) float32 { return x / s })
}

// ClipScalar clamps values to [minVal, maxVal]. hasMin and hasMax select
// which bound is applied.
func ClipScalar(a *Array, minVal, maxVal float32, hasMin, hasMax bool) *Array {
	return unaryOp(a, func(x float32) float32 {
		if hasMin && x < minVal {
			return minVal
		}
		if hasMax && x > maxVal {
			return maxVal
		}
		return x
	})
}
