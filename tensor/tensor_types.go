// tensor_types.go - Grundlegende Typen und Konstanten fuer die Tensor-Engine
//
// Enthaelt:
// - Dtype Definition, String() und ItemSize()
// - Array Struct Definition
//
// Die Engine rechnet intern immer in float32. Dtype markiert die
// Austausch-Praezision: AsType() rundet Werte durch das echte Bitformat
// (f16/bf16), Bytes() serialisiert im markierten Format.
package tensor

// Dtype represents the interchange precision of an array.
type Dtype int

const (
	DtypeFloat32 Dtype = iota
	DtypeFloat16
	DtypeBFloat16
)

// String implements fmt.Stringer for Dtype
func (d Dtype) String() string {
	switch d {
	case DtypeFloat32:
		return "f32"
	case DtypeFloat16:
		return "f16"
	case DtypeBFloat16:
		return "bf16"
	default:
		return "unknown"
	}
}

// ItemSize returns the size in bytes of one element for this dtype
func (d Dtype) ItemSize() int64 {
	switch d {
	case DtypeFloat16, DtypeBFloat16:
		return 2
	default:
		return 4
	}
}

// Array is a dense row-major tensor with float32 storage.
//
// Shape errors in kernel functions are caller bugs and panic.
// Package boundaries above the engine validate inputs and return errors.
type Array struct {
	data  []float32
	shape []int32
	dtype Dtype
}

// numElements returns the element count for a shape.
func numElements(shape []int32) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}
