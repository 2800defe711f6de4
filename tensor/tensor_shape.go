// tensor_shape.go - Shape-Operationen: Reshape, Slice, Concatenate, Tile
//
// Enthaelt:
// - Reshape, Flatten, ExpandDims, Squeeze: Views auf denselben Daten
// - Transpose: Achsen-Permutation (materialisiert)
// - Slice, SliceAxis, SliceUpdate, Chunk: Teilbereiche (kopiert)
// - Concatenate, Concat, Tile, BroadcastTo
package tensor

import "fmt"

// shapeEqual reports whether two shapes are identical.
func shapeEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normAxis resolves negative axes.
func normAxis(axis, ndim int) int {
	if axis < 0 {
		axis += ndim
	}
	if axis < 0 || axis >= ndim {
		panic(fmt.Sprintf("tensor: axis %d out of range for %d dimensions", axis, ndim))
	}
	return axis
}

// rowStrides computes row-major strides in elements.
func rowStrides(shape []int32) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= int(shape[i])
	}
	return strides
}

// Reshape returns a view of a with a new shape. One dimension may be -1
// and is inferred. The view shares the backing data.
func Reshape(a *Array, shape ...int32) *Array {
	out := append([]int32(nil), shape...)
	known, infer := 1, -1
	for i, d := range out {
		if d == -1 {
			if infer >= 0 {
				panic("tensor: Reshape allows at most one inferred dimension")
			}
			infer = i
			continue
		}
		known *= int(d)
	}
	if infer >= 0 {
		if known == 0 || len(a.data)%known != 0 {
			panic(fmt.Sprintf("tensor: cannot infer dimension for %d elements in shape %v", len(a.data), shape))
		}
		out[infer] = int32(len(a.data) / known)
	} else if known != len(a.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %d elements to %v", len(a.data), shape))
	}
	return &Array{data: a.data, shape: out, dtype: a.dtype}
}

// Flatten returns a 1D view of a.
func Flatten(a *Array) *Array {
	return Reshape(a, int32(len(a.data)))
}

// ExpandDims returns a view with a 1-sized dimension inserted at axis.
func ExpandDims(a *Array, axis int) *Array {
	if axis < 0 {
		axis += len(a.shape) + 1
	}
	shape := make([]int32, 0, len(a.shape)+1)
	shape = append(shape, a.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, a.shape[axis:]...)
	return &Array{data: a.data, shape: shape, dtype: a.dtype}
}

// Squeeze returns a view with the 1-sized dimension at axis removed.
func Squeeze(a *Array, axis int) *Array {
	axis = normAxis(axis, len(a.shape))
	if a.shape[axis] != 1 {
		panic(fmt.Sprintf("tensor: Squeeze axis %d has size %d", axis, a.shape[axis]))
	}
	shape := make([]int32, 0, len(a.shape)-1)
	shape = append(shape, a.shape[:axis]...)
	shape = append(shape, a.shape[axis+1:]...)
	return &Array{data: a.data, shape: shape, dtype: a.dtype}
}

// Transpose permutes the axes of a. Without axes the order is reversed.
func Transpose(a *Array, axes ...int) *Array {
	n := len(a.shape)
	if len(axes) == 0 {
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	if len(axes) != n {
		panic(fmt.Sprintf("tensor: Transpose needs %d axes, got %d", n, len(axes)))
	}

	outShape := make([]int32, n)
	for i, ax := range axes {
		outShape[i] = a.shape[normAxis(ax, n)]
	}
	srcStrides := rowStrides(a.shape)
	permStrides := make([]int, n)
	for i, ax := range axes {
		permStrides[i] = srcStrides[normAxis(ax, n)]
	}

	out := &Array{data: make([]float32, len(a.data)), shape: outShape, dtype: a.dtype}
	idx := make([]int32, n)
	src := 0
	for i := range out.data {
		out.data[i] = a.data[src]
		for axis := n - 1; axis >= 0; axis-- {
			idx[axis]++
			src += permStrides[axis]
			if idx[axis] < outShape[axis] {
				break
			}
			idx[axis] = 0
			src -= int(outShape[axis]) * permStrides[axis]
		}
	}
	return out
}

// Slice copies the region [start, stop) along every axis.
func Slice(a *Array, start, stop []int32) *Array {
	n := len(a.shape)
	if len(start) != n || len(stop) != n {
		panic(fmt.Sprintf("tensor: Slice needs %d start/stop values", n))
	}
	outShape := make([]int32, n)
	for i := range outShape {
		if start[i] < 0 || stop[i] > a.shape[i] || start[i] > stop[i] {
			panic(fmt.Sprintf("tensor: Slice range [%d, %d) out of bounds for axis %d with size %d", start[i], stop[i], i, a.shape[i]))
		}
		outShape[i] = stop[i] - start[i]
	}

	out := &Array{data: make([]float32, numElements(outShape)), shape: outShape, dtype: a.dtype}
	if out.Size() == 0 {
		return out
	}
	srcStrides := rowStrides(a.shape)

	// Copy contiguous runs of the innermost axis.
	run := int(outShape[n-1])
	base := 0
	for i := range start {
		base += int(start[i]) * srcStrides[i]
	}
	idx := make([]int32, n-1)
	src := base
	for off := 0; off < len(out.data); off += run {
		copy(out.data[off:off+run], a.data[src:src+run])
		for axis := n - 2; axis >= 0; axis-- {
			idx[axis]++
			src += srcStrides[axis]
			if idx[axis] < outShape[axis] {
				break
			}
			idx[axis] = 0
			src -= int(outShape[axis]) * srcStrides[axis]
		}
	}
	return out
}

// SliceAxis copies the region [start, stop) along a single axis.
func SliceAxis(a *Array, axis int, start, stop int32) *Array {
	axis = normAxis(axis, len(a.shape))
	lo := make([]int32, len(a.shape))
	hi := a.Shape()
	lo[axis], hi[axis] = start, stop
	return Slice(a, lo, hi)
}

// SliceUpdate returns a copy of a with the region [start, stop) replaced
// by update. The update shape must match the region.
func SliceUpdate(a, update *Array, start, stop []int32) *Array {
	n := len(a.shape)
	if len(start) != n || len(stop) != n {
		panic(fmt.Sprintf("tensor: SliceUpdate needs %d start/stop values", n))
	}
	region := make([]int32, n)
	for i := range region {
		region[i] = stop[i] - start[i]
	}
	if !shapeEqual(region, update.shape) {
		panic(fmt.Sprintf("tensor: SliceUpdate region %v does not match update shape %v", region, update.shape))
	}

	out := &Array{data: append([]float32(nil), a.data...), shape: a.Shape(), dtype: a.dtype}
	if update.Size() == 0 {
		return out
	}
	dstStrides := rowStrides(a.shape)

	run := int(region[n-1])
	base := 0
	for i := range start {
		base += int(start[i]) * dstStrides[i]
	}
	idx := make([]int32, n-1)
	dst := base
	for off := 0; off < len(update.data); off += run {
		copy(out.data[dst:dst+run], update.data[off:off+run])
		for axis := n - 2; axis >= 0; axis-- {
			idx[axis]++
			dst += dstStrides[axis]
			if idx[axis] < region[axis] {
				break
			}
			idx[axis] = 0
			dst -= int(region[axis]) * dstStrides[axis]
		}
	}
	return out
}

// Chunk splits a into equal parts along axis.
func Chunk(a *Array, chunks, axis int) []*Array {
	axis = normAxis(axis, len(a.shape))
	if chunks < 1 || a.shape[axis]%int32(chunks) != 0 {
		panic(fmt.Sprintf("tensor: cannot split axis %d of size %d into %d chunks", axis, a.shape[axis], chunks))
	}
	size := a.shape[axis] / int32(chunks)
	out := make([]*Array, chunks)
	for i := range out {
		out[i] = SliceAxis(a, axis, int32(i)*size, int32(i+1)*size)
	}
	return out
}

// Concatenate joins arrays along axis. All other dimensions must match.
func Concatenate(arrs []*Array, axis int) *Array {
	if len(arrs) == 0 {
		panic("tensor: Concatenate needs at least one array")
	}
	first := arrs[0]
	axis = normAxis(axis, len(first.shape))

	outShape := first.Shape()
	for _, a := range arrs[1:] {
		if len(a.shape) != len(first.shape) {
			panic(fmt.Sprintf("tensor: Concatenate rank mismatch %d vs %d", len(a.shape), len(first.shape)))
		}
		for i := range a.shape {
			if i != axis && a.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("tensor: Concatenate shapes %v and %v differ outside axis %d", first.shape, a.shape, axis))
			}
		}
		outShape[axis] += a.shape[axis]
	}

	outer := 1
	for i := 0; i < axis; i++ {
		outer *= int(first.shape[i])
	}
	inner := 1
	for i := axis + 1; i < len(first.shape); i++ {
		inner *= int(first.shape[i])
	}

	dtype := first.dtype
	for _, a := range arrs[1:] {
		if a.dtype != dtype {
			dtype = DtypeFloat32
		}
	}
	out := &Array{data: make([]float32, numElements(outShape)), shape: outShape, dtype: dtype}
	dst := 0
	for o := 0; o < outer; o++ {
		for _, a := range arrs {
			blk := int(a.shape[axis]) * inner
			copy(out.data[dst:dst+blk], a.data[o*blk:(o+1)*blk])
			dst += blk
		}
	}
	return out
}

// Concat joins two arrays along axis.
func Concat(a, b *Array, axis int) *Array {
	return Concatenate([]*Array{a, b}, axis)
}

// Tile repeats a along every axis. len(reps) must equal the rank.
func Tile(a *Array, reps []int32) *Array {
	n := len(a.shape)
	if len(reps) != n {
		panic(fmt.Sprintf("tensor: Tile needs %d reps, got %d", n, len(reps)))
	}
	outShape := make([]int32, n)
	for i := range outShape {
		if reps[i] < 1 {
			panic(fmt.Sprintf("tensor: Tile reps must be positive, got %d", reps[i]))
		}
		outShape[i] = a.shape[i] * reps[i]
	}

	out := &Array{data: make([]float32, numElements(outShape)), shape: outShape, dtype: a.dtype}
	if out.Size() == 0 {
		return out
	}
	srcStrides := rowStrides(a.shape)
	idx := make([]int32, n)
	srcIdx := make([]int32, n)
	src := 0
	for i := range out.data {
		out.data[i] = a.data[src]
		for axis := n - 1; axis >= 0; axis-- {
			idx[axis]++
			srcIdx[axis]++
			src += srcStrides[axis]
			if srcIdx[axis] == a.shape[axis] {
				srcIdx[axis] = 0
				src -= int(a.shape[axis]) * srcStrides[axis]
			}
			if idx[axis] < outShape[axis] {
				break
			}
			// outShape is a multiple of the source size, srcIdx wrapped with idx
			idx[axis] = 0
		}
	}
	return out
}

// BroadcastTo materializes a broadcast of a to the given shape.
func BroadcastTo(a *Array, shape []int32) *Array {
	if shapeEqual(a.shape, shape) {
		return &Array{data: append([]float32(nil), a.data...), shape: a.Shape(), dtype: a.dtype}
	}
	target := append([]int32(nil), shape...)
	common := broadcastShape(a.shape, target)
	if !shapeEqual(common, target) {
		panic(fmt.Sprintf("tensor: cannot broadcast %v to %v", a.shape, shape))
	}
	strides := broadcastStrides(a.shape, target)

	out := &Array{data: make([]float32, numElements(target)), shape: target, dtype: a.dtype}
	idx := make([]int32, len(target))
	src := 0
	for i := range out.data {
		out.data[i] = a.data[src]
		for axis := len(target) - 1; axis >= 0; axis-- {
			idx[axis]++
			src += strides[axis]
			if idx[axis] < target[axis] {
				break
			}
			idx[axis] = 0
			src -= int(target[axis]) * strides[axis]
		}
	}
	return out
}
