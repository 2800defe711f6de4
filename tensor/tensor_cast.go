// tensor_cast.go - Praezisions-Casts zwischen f32, f16 und bf16
//
// AsType rundet jeden Wert durch das echte Bitformat, damit der Effekt
// der Arbeitspraezision im Ergebnis sichtbar ist.
package tensor

import (
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// AsType converts a to the given dtype. Converting to a half precision
// rounds every value through the target bit format.
func AsType(a *Array, dtype Dtype) *Array {
	if a.dtype == dtype {
		return &Array{data: append([]float32(nil), a.data...), shape: a.Shape(), dtype: dtype}
	}
	out := &Array{data: make([]float32, len(a.data)), shape: a.Shape(), dtype: dtype}
	switch dtype {
	case DtypeFloat16:
		parallelFor(len(a.data), func(start, end int) {
			for i := start; i < end; i++ {
				out.data[i] = float16.Fromfloat32(a.data[i]).Float32()
			}
		})
	case DtypeBFloat16:
		parallelFor(len(a.data), func(start, end int) {
			for i := start; i < end; i++ {
				out.data[i] = bfloat16.ToFloat32(bfloat16.FromFloat32(a.data[i]))
			}
		})
	default:
		copy(out.data, a.data)
	}
	return out
}

// ToFloat16 converts a to f16 precision.
func ToFloat16(a *Array) *Array { return AsType(a, DtypeFloat16) }

// ToBFloat16 converts a to bf16 precision.
func ToBFloat16(a *Array) *Array { return AsType(a, DtypeBFloat16) }
