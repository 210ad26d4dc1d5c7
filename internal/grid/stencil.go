package grid

import (
	"fmt"

	"github.com/masaori/evolimo/internal/tensor"
)

// Kernel evaluates one (center, neighbor) pair's D-channel state
// vectors and returns the D-channel contribution to sum into the
// center slot. It is the runtime's job to realize this by executing a
// stencil's compiled kernel_operations; grid itself never interprets
// IR.
type Kernel func(center, neighbor []float32) ([]float32, error)

// Stencil accumulates, for every cell and every occupied slot in it,
// the kernel applied against every occupied slot of every cell within
// range (inclusive), torus-wrapped, skipping the exact self-pair
// (dy=dx=0, c=c') — spec.md §4.5's stencil contract. Offsets are
// visited in lexical (dy, dx) order and neighbor slots in ascending
// order, matching the deterministic left-fold reduction order spec.md
// §5 requires.
func Stencil(grid *tensor.Tensor, mask *tensor.Tensor, rng int, kernel Kernel) (*tensor.Tensor, error) {
	if len(grid.Shape) != 4 {
		return nil, fmt.Errorf("grid: stencil grid must be [H,W,C,D], got shape %v", grid.Shape)
	}
	h, w, c, d := grid.Shape[0], grid.Shape[1], grid.Shape[2], grid.Shape[3]
	out := tensor.Zeros(grid.Shape)

	strideH := w * c * d
	strideW := c * d
	strideC := d

	cellBase := func(y, x int) int { return y*strideH + x*strideW }

	var stencilErr error
	for dy := -rng; dy <= rng; dy++ {
		for dx := -rng; dx <= rng; dx++ {
			isSelfOffset := dy == 0 && dx == 0
			tensor.ParallelFor(h, func(yStart, yEnd int) {
				for y := yStart; y < yEnd; y++ {
					ny := wrap(y+dy, h)
					for x := 0; x < w; x++ {
						nx := wrap(x+dx, w)
						centerCellBase := cellBase(y, x)
						neighborCellBase := cellBase(ny, nx)

						for center := 0; center < c; center++ {
							if mask.Data[centerCellBase/d+center] == 0 {
								continue
							}
							centerOff := centerCellBase + center*strideC
							centerVec := grid.Data[centerOff : centerOff+d]

							for neighbor := 0; neighbor < c; neighbor++ {
								if isSelfOffset && neighbor == center {
									continue
								}
								if mask.Data[neighborCellBase/d+neighbor] == 0 {
									continue
								}
								neighborOff := neighborCellBase + neighbor*strideC
								neighborVec := grid.Data[neighborOff : neighborOff+d]

								contribution, err := kernel(centerVec, neighborVec)
								if err != nil {
									stencilErr = err
									return
								}
								outOff := centerOff
								for k := 0; k < d && k < len(contribution); k++ {
									out.Data[outOff+k] += contribution[k]
								}
							}
						}
					}
				}
			})
			if stencilErr != nil {
				return nil, stencilErr
			}
		}
	}
	return out, nil
}
