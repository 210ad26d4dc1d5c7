// Package tensor implements the flat N-dimensional float32 array that the
// runtime interpreter and the spatial grid engine operate on.
//
// There is no ecosystem tensor library in this corpus that covers both
// arbitrary rank (needed for the [H,W,C,D] grid tensors) and the exact
// scatter/overflow/determinism contract the spec requires — see
// DESIGN.md for what was tried and why it did not fit. This type is
// grounded on original_source/simulator/src/grid.rs's candle_core::Tensor
// usage (narrow/index_add/broadcast) and on the teacher's row-sliced
// worker-pool step function for the parallel fan-out.
package tensor

import (
	"fmt"
	"runtime"
	"sync"
)

// Tensor is a dense, row-major (C-order, last axis fastest), float32
// N-dimensional array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// parallelThreshold is the element count above which elementwise and
// reduction ops fan out across a worker pool instead of running inline.
// Below it, goroutine spawn overhead outweighs the parallel win — most
// of the tensors exercised by this spec's scenario tests are small.
const parallelThreshold = 1 << 16

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// New allocates a tensor with the given shape, copying data if provided
// (nil data yields a zero-filled tensor).
func New(shape []int, data []float32) *Tensor {
	n := numel(shape)
	out := make([]float32, n)
	if data != nil {
		copy(out, data)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: out}
}

// Zeros allocates a zero-filled tensor of the given shape.
func Zeros(shape []int) *Tensor {
	return New(shape, nil)
}

// Full allocates a tensor of the given shape filled with v.
func Full(shape []int, v float32) *Tensor {
	t := Zeros(shape)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return New(t.Shape, t.Data)
}

// parallelFor splits [0,n) into row-ranges across a worker pool and joins
// before returning, mirroring the teacher's parallelStep/workerStep pair.
func parallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold {
		fn(0, n)
		return
	}
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelFor exposes the row-range worker-pool fan-out to other
// packages (the grid engine's stencil pass) that need the
// same parallelization contract as the elementwise ops below.
func ParallelFor(n int, fn func(start, end int)) { parallelFor(n, fn) }

// broadcastShape computes the NumPy-style right-aligned broadcast shape
// of a and b, matching the spec's "broadcast allowed" elementwise rule.
func broadcastShape(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, fmt.Errorf("tensor: shape mismatch for broadcast: %v vs %v", a, b)
		}
	}
	return out, nil
}

// broadcastIndex maps a multi-index in outShape back into a flat offset
// within a tensor of shape `shape`, treating size-1 (or absent) axes as
// broadcast.
func broadcastIndex(idx []int, outShape, shape []int, strideOf []int) int {
	rankDiff := len(outShape) - len(shape)
	off := 0
	for i, dim := range shape {
		oi := idx[i+rankDiff]
		if dim == 1 {
			oi = 0
		}
		off += oi * strideOf[i]
	}
	return off
}

func unravel(flat int, shape []int, out []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		out[i] = flat % shape[i]
		flat /= shape[i]
	}
}

func binaryBroadcast(a, b *Tensor, op func(x, y float32) float32) (*Tensor, error) {
	outShape, err := broadcastShape(a.Shape, b.Shape)
	if err != nil {
		return nil, err
	}
	out := Zeros(outShape)
	as, bs := strides(a.Shape), strides(b.Shape)
	n := out.Numel()
	parallelFor(n, func(start, end int) {
		idx := make([]int, len(outShape))
		for flat := start; flat < end; flat++ {
			unravel(flat, outShape, idx)
			ao := broadcastIndex(idx, outShape, a.Shape, as)
			bo := broadcastIndex(idx, outShape, b.Shape, bs)
			out.Data[flat] = op(a.Data[ao], b.Data[bo])
		}
	})
	return out, nil
}

func unaryMap(a *Tensor, op func(x float32) float32) *Tensor {
	out := Zeros(a.Shape)
	parallelFor(len(a.Data), func(start, end int) {
		for i := start; i < end; i++ {
			out.Data[i] = op(a.Data[i])
		}
	})
	return out
}

// Add performs elementwise addition with broadcast.
func Add(a, b *Tensor) (*Tensor, error) { return binaryBroadcast(a, b, func(x, y float32) float32 { return x + y }) }

// Sub performs elementwise subtraction with broadcast.
func Sub(a, b *Tensor) (*Tensor, error) { return binaryBroadcast(a, b, func(x, y float32) float32 { return x - y }) }

// Mul performs elementwise multiplication with broadcast.
func Mul(a, b *Tensor) (*Tensor, error) { return binaryBroadcast(a, b, func(x, y float32) float32 { return x * y }) }

// Div performs elementwise division with broadcast.
func Div(a, b *Tensor) (*Tensor, error) { return binaryBroadcast(a, b, func(x, y float32) float32 { return x / y }) }

// Lt produces a 0/1-valued tensor, 1 where a < b.
func Lt(a, b *Tensor) (*Tensor, error) {
	return binaryBroadcast(a, b, func(x, y float32) float32 {
		if x < y {
			return 1
		}
		return 0
	})
}

// Gt produces a 0/1-valued tensor, 1 where a > b.
func Gt(a, b *Tensor) (*Tensor, error) {
	return binaryBroadcast(a, b, func(x, y float32) float32 {
		if x > y {
			return 1
		}
		return 0
	})
}

// Ge produces a 0/1-valued tensor, 1 where a >= b.
func Ge(a, b *Tensor) (*Tensor, error) {
	return binaryBroadcast(a, b, func(x, y float32) float32 {
		if x >= y {
			return 1
		}
		return 0
	})
}

// Where realizes cond*t + (1-cond)*f, the spec's documented select.
func Where(cond, t, f *Tensor) (*Tensor, error) {
	ct, err := binaryBroadcast(cond, t, func(c, v float32) float32 { return c * v })
	if err != nil {
		return nil, err
	}
	oneMinusC := unaryMap(cond, func(c float32) float32 { return 1 - c })
	cf, err := binaryBroadcast(oneMinusC, f, func(c, v float32) float32 { return c * v })
	if err != nil {
		return nil, err
	}
	return Add(ct, cf)
}

// Sqrt, Relu and Neg are the elementwise unary ops named in the spec.
func Sqrt(a *Tensor) *Tensor { return unaryMap(a, sqrtf) }
func Relu(a *Tensor) *Tensor {
	return unaryMap(a, func(x float32) float32 {
		if x < 0 {
			return 0
		}
		return x
	})
}
func Neg(a *Tensor) *Tensor { return unaryMap(a, func(x float32) float32 { return -x }) }

func sqrtf(x float32) float32 {
	if x <= 0 {
		return 0
	}
	// Newton's method avoids importing math just for float32 sqrt precision
	// mismatches. It iterates until z stops changing; the cap covers the
	// whole float32 range and a final step that flips between two
	// neighbouring values.
	z := x
	for i := 0; i < 128; i++ {
		next := 0.5 * (z + x/z)
		if next == z {
			break
		}
		z = next
	}
	return z
}

// Sum reduces along dim using a left fold, the order the spec fixes for
// deterministic, backend-independent output.
func (t *Tensor) Sum(dim int, keepdim bool) (*Tensor, error) {
	if dim < 0 || dim >= len(t.Shape) {
		return nil, fmt.Errorf("tensor: sum dim %d out of range for shape %v", dim, t.Shape)
	}
	outShape := append([]int(nil), t.Shape...)
	if keepdim {
		outShape[dim] = 1
	} else {
		outShape = append(outShape[:dim], outShape[dim+1:]...)
	}
	out := Zeros(outShape)
	st := strides(t.Shape)
	reduceLen := t.Shape[dim]
	reduceStride := st[dim]

	// Iterate every element position of the non-reduced axes in order,
	// left-folding over the reduced axis for each.
	idx := make([]int, len(t.Shape))
	var walk func(axis int, base int)
	outFlat := 0
	walk = func(axis int, base int) {
		if axis == len(t.Shape) {
			var acc float32
			off := base
			for k := 0; k < reduceLen; k++ {
				acc += t.Data[off]
				off += reduceStride
			}
			out.Data[outFlat] = acc
			outFlat++
			return
		}
		if axis == dim {
			walk(axis+1, base)
			return
		}
		for v := 0; v < t.Shape[axis]; v++ {
			idx[axis] = v
			walk(axis+1, base+v*st[axis])
		}
	}
	walk(0, 0)
	return out, nil
}

// Transpose swaps two axes, materializing a new contiguous tensor.
func (t *Tensor) Transpose(dim0, dim1 int) (*Tensor, error) {
	rank := len(t.Shape)
	if dim0 < 0 || dim0 >= rank || dim1 < 0 || dim1 >= rank {
		return nil, fmt.Errorf("tensor: transpose dims (%d,%d) out of range for rank %d", dim0, dim1, rank)
	}
	outShape := append([]int(nil), t.Shape...)
	outShape[dim0], outShape[dim1] = outShape[dim1], outShape[dim0]
	out := Zeros(outShape)
	outStrides := strides(outShape)

	idx := make([]int, rank)
	n := t.Numel()
	for flat := 0; flat < n; flat++ {
		unravel(flat, t.Shape, idx)
		oIdx := append([]int(nil), idx...)
		oIdx[dim0], oIdx[dim1] = idx[dim1], idx[dim0]
		outOff := 0
		for i, v := range oIdx {
			outOff += v * outStrides[i]
		}
		out.Data[outOff] = t.Data[flat]
	}
	return out, nil
}

// Cat concatenates tensors along dim; all other dims must match.
func Cat(values []*Tensor, dim int) (*Tensor, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("tensor: cat requires at least one value")
	}
	rank := len(values[0].Shape)
	if dim < 0 || dim >= rank {
		return nil, fmt.Errorf("tensor: cat dim %d out of range for rank %d", dim, rank)
	}
	outShape := append([]int(nil), values[0].Shape...)
	total := 0
	for _, v := range values {
		if len(v.Shape) != rank {
			return nil, fmt.Errorf("tensor: cat rank mismatch")
		}
		for i := 0; i < rank; i++ {
			if i == dim {
				continue
			}
			if v.Shape[i] != outShape[i] {
				return nil, fmt.Errorf("tensor: cat shape mismatch on non-cat dim %d: %v vs %v", i, v.Shape, outShape)
			}
		}
		total += v.Shape[dim]
	}
	outShape[dim] = total
	out := Zeros(outShape)
	outStrides := strides(outShape)

	offset := 0
	for _, v := range values {
		idx := make([]int, rank)
		n := v.Numel()
		for flat := 0; flat < n; flat++ {
			unravel(flat, v.Shape, idx)
			oIdx := append([]int(nil), idx...)
			oIdx[dim] += offset
			outOff := 0
			for i, val := range oIdx {
				outOff += val * outStrides[i]
			}
			out.Data[outOff] = v.Data[flat]
		}
		offset += v.Shape[dim]
	}
	return out, nil
}

// Slice extracts a contiguous [start, start+length) range along dim.
func (t *Tensor) Slice(dim, start, length int) (*Tensor, error) {
	rank := len(t.Shape)
	if dim < 0 || dim >= rank {
		return nil, fmt.Errorf("tensor: slice dim %d out of range for rank %d", dim, rank)
	}
	if start < 0 || length < 0 || start+length > t.Shape[dim] {
		return nil, fmt.Errorf("tensor: slice [%d,%d) out of bounds for dim %d size %d", start, start+length, dim, t.Shape[dim])
	}
	outShape := append([]int(nil), t.Shape...)
	outShape[dim] = length
	out := Zeros(outShape)
	inStrides := strides(t.Shape)
	outStrides := strides(outShape)
	idx := make([]int, rank)
	n := out.Numel()
	for flat := 0; flat < n; flat++ {
		unravel(flat, outShape, idx)
		inOff := 0
		for i, v := range idx {
			iv := v
			if i == dim {
				iv += start
			}
			inOff += iv * inStrides[i]
		}
		outOff := 0
		for i, v := range idx {
			outOff += v * outStrides[i]
		}
		out.Data[outOff] = t.Data[inOff]
	}
	return out, nil
}
