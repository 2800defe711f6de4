// tensor_matmul.go - Matrixmultiplikation ueber gonum BLAS
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matmul multiplies a [..., M, K] by b [K, N] and returns [..., M, N].
// Leading dimensions of a are flattened into rows, b must be 2D.
func Matmul(a, b *Array) *Array {
	if b.Ndim() != 2 {
		panic(fmt.Sprintf("tensor: Matmul right operand must be 2D, got %v", b.shape))
	}
	if a.Ndim() < 1 {
		panic("tensor: Matmul left operand must have at least one dimension")
	}
	k := int(a.shape[len(a.shape)-1])
	if int32(k) != b.shape[0] {
		panic(fmt.Sprintf("tensor: Matmul inner dimensions %d and %d do not match", k, b.shape[0]))
	}
	m := len(a.data) / k
	n := int(b.shape[1])

	out := make([]float32, m*n)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a.data},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b.data},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: out})

	outShape := a.Shape()
	outShape[len(outShape)-1] = int32(n)
	return &Array{data: out, shape: outShape, dtype: resultDtype(a, b)}
}
