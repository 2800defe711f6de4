// tensor_create.go - Konstruktoren fuer Arrays
//
// Enthaelt:
// - NewArray, NewScalarArray: Arrays aus Go-Slices
// - Zeros, Ones, Full: gefuellte Arrays
// - Arange, Linspace: Wertebereiche
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// NewArray creates an array from float32 data with the given shape.
// The data slice is used directly, not copied.
func NewArray(data []float32, shape []int32) *Array {
	if len(shape) == 0 {
		shape = []int32{int32(len(data))}
	}
	if n := numElements(shape); n != len(data) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, n))
	}
	return &Array{data: data, shape: append([]int32(nil), shape...), dtype: DtypeFloat32}
}

// NewScalarArray creates a 1-element array holding value.
func NewScalarArray(value float32) *Array {
	return NewArray([]float32{value}, []int32{1})
}

// Zeros creates a zero-filled array.
func Zeros(shape ...int32) *Array {
	return NewArray(make([]float32, numElements(shape)), shape)
}

// Ones creates a one-filled array.
func Ones(shape ...int32) *Array {
	return Full(1, shape...)
}

// Full creates an array filled with value.
func Full(value float32, shape ...int32) *Array {
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = value
	}
	return NewArray(data, shape)
}

// Arange creates a 1D array with values [start, stop) in increments of step.
func Arange(start, stop, step float32) *Array {
	if step == 0 {
		panic("tensor: Arange step must not be zero")
	}
	n := int((stop - start) / step)
	if float32(n)*step+start < stop {
		n++
	}
	if n < 0 {
		n = 0
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = start + float32(i)*step
	}
	return NewArray(data, []int32{int32(n)})
}

// Linspace creates a 1D array with steps evenly spaced values from start to
// stop, both inclusive.
func Linspace(start, stop float32, steps int32) *Array {
	if steps < 1 {
		panic("tensor: Linspace needs at least one step")
	}
	if steps == 1 {
		return NewArray([]float32{start}, []int32{1})
	}
	span := make([]float64, steps)
	floats.Span(span, float64(start), float64(stop))
	data := make([]float32, steps)
	for i, v := range span {
		data[i] = float32(v)
	}
	return NewArray(data, []int32{steps})
}
