// tensor_props.go - Eigenschaften und Zugriffsfunktionen fuer Arrays
//
// Enthaelt:
// - Ndim, Size, Dim, Shape, Dtype
// - Data, Item, Bytes, String
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int {
	return len(a.shape)
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	return len(a.data)
}

// Dim returns the size of the given axis.
func (a *Array) Dim(axis int) int32 {
	if axis < 0 {
		axis += len(a.shape)
	}
	return a.shape[axis]
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int32 {
	return append([]int32(nil), a.shape...)
}

// Dtype returns the interchange precision tag.
func (a *Array) Dtype() Dtype {
	return a.dtype
}

// Data returns the backing float32 slice. The slice is shared with the
// array, writes through it are visible to all views of the array.
func (a *Array) Data() []float32 {
	return a.data
}

// Item returns the value of a 1-element array.
func (a *Array) Item() float32 {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on array with %d elements", len(a.data)))
	}
	return a.data[0]
}

// Nbytes returns the serialized size in bytes for the array's dtype.
func (a *Array) Nbytes() int64 {
	return int64(len(a.data)) * a.dtype.ItemSize()
}

// Bytes serializes the array in its dtype's little-endian wire format.
func (a *Array) Bytes() []byte {
	switch a.dtype {
	case DtypeFloat16:
		out := make([]byte, 2*len(a.data))
		for i, v := range a.data {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out
	case DtypeBFloat16:
		return bfloat16.EncodeFloat32(a.data)
	default:
		out := make([]byte, 4*len(a.data))
		for i, v := range a.data {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	}
}

// String implements fmt.Stringer with shape, dtype and a short data preview.
func (a *Array) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "array(shape=%v, dtype=%s, [", a.shape, a.dtype)
	for i, v := range a.data {
		if i == 8 {
			sb.WriteString(", ...")
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteString("])")
	return sb.String()
}
