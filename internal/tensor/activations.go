package tensor

import (
	"fmt"
	"math"
)

// Tanh and Sigmoid are the two saturating phenotype-head activations
// spec.md §3 names alongside softmax and none.
func Tanh(a *Tensor) *Tensor {
	return unaryMap(a, func(x float32) float32 { return float32(math.Tanh(float64(x))) })
}

func Sigmoid(a *Tensor) *Tensor {
	return unaryMap(a, func(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) })
}

// Softmax normalizes along dim, subtracting the per-row max first for
// numerical stability before exponentiating.
func Softmax(a *Tensor, dim int) (*Tensor, error) {
	if dim < 0 || dim >= len(a.Shape) {
		return nil, fmt.Errorf("tensor: softmax dim %d out of range for shape %v", dim, a.Shape)
	}
	maxVal, err := reduceAlong(a, dim, math.Inf(-1), func(acc, x float32) float32 {
		if x > acc {
			return x
		}
		return acc
	})
	if err != nil {
		return nil, err
	}
	shifted, err := Sub(a, maxVal)
	if err != nil {
		return nil, err
	}
	exp := unaryMap(shifted, func(x float32) float32 { return float32(math.Exp(float64(x))) })
	sum, err := exp.Sum(dim, true)
	if err != nil {
		return nil, err
	}
	return Div(exp, sum)
}

// reduceAlong keepdim-reduces a along dim starting from init, folding
// with op in ascending index order — the same left-fold determinism
// Sum uses.
func reduceAlong(a *Tensor, dim int, init float64, op func(acc, x float32) float32) (*Tensor, error) {
	outShape := append([]int(nil), a.Shape...)
	outShape[dim] = 1
	out := Full(outShape, float32(init))
	outSt := strides(outShape)

	idx := make([]int, len(a.Shape))
	n := a.Numel()
	for flat := 0; flat < n; flat++ {
		unravel(flat, a.Shape, idx)
		outOff := 0
		for i, v := range idx {
			iv := v
			if i == dim {
				iv = 0
			}
			outOff += iv * outSt[i]
		}
		out.Data[outOff] = op(out.Data[outOff], a.Data[flat])
	}
	return out, nil
}
