package tensor

import "fmt"

// MatMul computes the standard 2-D matrix product of a [N,K] and b
// [K,M], row-parallel over N the same way the elementwise ops are —
// this is the phenotype engine's dense-layer primitive and is not
// part of the IR's op vocabulary (spec.md §3's node table has no
// matmul; the phenotype MLP sits alongside the IR, not inside it).
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("tensor: matmul requires rank-2 operands, got %v and %v", a.Shape, b.Shape)
	}
	n, k := a.Shape[0], a.Shape[1]
	k2, m := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("tensor: matmul inner dimension mismatch: %v vs %v", a.Shape, b.Shape)
	}
	out := Zeros([]int{n, m})
	parallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			for p := 0; p < k; p++ {
				av := a.Data[i*k+p]
				if av == 0 {
					continue
				}
				for j := 0; j < m; j++ {
					out.Data[i*m+j] += av * b.Data[p*m+j]
				}
			}
		}
	})
	return out, nil
}
