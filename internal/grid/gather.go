package grid

import (
	"fmt"

	"github.com/masaori/evolimo/internal/tensor"
)

// Gather reverses the slot map recorded by Scatter, reading each
// agent's assigned (cell, slot) vector back out of grid. Agents
// dropped at scatter time (slot -1) read zeros — spec.md §4.5's
// grid_gather contract.
func Gather(grid *tensor.Tensor, slots SlotMap) (*tensor.Tensor, error) {
	if len(grid.Shape) != 4 {
		return nil, fmt.Errorf("grid: gather grid must be [H,W,C,D], got shape %v", grid.Shape)
	}
	d := grid.Shape[3]
	out := tensor.Zeros([]int{len(slots), d})

	for i, flatSlot := range slots {
		if flatSlot < 0 {
			continue
		}
		copy(out.Data[i*d:i*d+d], grid.Data[flatSlot*d:flatSlot*d+d])
	}
	return out, nil
}
