package grid

import (
	"fmt"

	"github.com/masaori/evolimo/internal/tensor"
)

// SlotMap records, for each agent, the flat [H*W*C] slot it was
// scattered into, or -1 if it overflowed its cell's capacity and was
// dropped. Gather uses it to reverse the mapping.
type SlotMap []int

// Scatter buckets value[N,D] by position into a [H,W,C,D] grid, using
// DropOverflow semantics (spec.md §4.5's primary, documented policy).
func Scatter(value, x, y *tensor.Tensor, cfg Config) (*tensor.Tensor, *tensor.Tensor, SlotMap, Stats, error) {
	return ScatterWithMode(value, x, y, cfg, DropOverflow)
}

// ScatterWithMode is Scatter generalized over CollisionMode.
func ScatterWithMode(value, x, y *tensor.Tensor, cfg Config, mode CollisionMode) (*tensor.Tensor, *tensor.Tensor, SlotMap, Stats, error) {
	if len(value.Shape) != 2 {
		return nil, nil, nil, Stats{}, fmt.Errorf("grid: scatter value must be [N,D], got shape %v", value.Shape)
	}
	n, d := value.Shape[0], value.Shape[1]
	if x.Numel() != n || y.Numel() != n {
		return nil, nil, nil, Stats{}, fmt.Errorf("grid: scatter x/y must have %d elements, got %d/%d", n, x.Numel(), y.Numel())
	}

	grid := tensor.Zeros([]int{cfg.Height, cfg.Width, cfg.Capacity, d})
	mask := tensor.Zeros([]int{cfg.Height, cfg.Width, cfg.Capacity, 1})
	slots := make(SlotMap, n)

	switch mode {
	case AverageOverflow:
		scatterAveraged(value, x, y, cfg, n, d, grid, mask, slots)
		return grid, mask, slots, Stats{}, nil
	default:
		stats := scatterOrdered(value, x, y, cfg, n, d, grid, mask, slots)
		return grid, mask, slots, stats, nil
	}
}

// scatterOrdered fills cells in agent-iteration order, dropping agents
// that arrive after their cell's capacity is already full. This must
// run sequentially — the per-cell slot counters make the outcome
// order-dependent by design (spec.md §5's "dropped in insertion order
// is part of the contract").
func scatterOrdered(value, x, y *tensor.Tensor, cfg Config, n, d int, grid, mask *tensor.Tensor, slots SlotMap) Stats {
	cellCounts := make([]int, cfg.Width*cfg.Height)
	var stats Stats

	for i := 0; i < n; i++ {
		cx := clampCell(float64(x.Data[i]), cfg.CellSizeX, cfg.Width)
		cy := clampCell(float64(y.Data[i]), cfg.CellSizeY, cfg.Height)
		cell := cy*cfg.Width + cx

		if cellCounts[cell] >= cfg.Capacity {
			stats.Dropped++
			slots[i] = -1
			continue
		}
		slot := cellCounts[cell]
		cellCounts[cell]++

		flatSlot := cell*cfg.Capacity + slot
		slots[i] = flatSlot
		copy(grid.Data[flatSlot*d:flatSlot*d+d], value.Data[i*d:i*d+d])
		mask.Data[flatSlot] = 1
	}
	return stats
}

// scatterAveraged reproduces the original implementation's hash-based
// slot assignment (particle index mod capacity) with colliding
// particles averaged into the shared slot instead of one winning by
// arrival order. See SPEC_FULL.md §11 point 1.
func scatterAveraged(value, x, y *tensor.Tensor, cfg Config, n, d int, grid, mask *tensor.Tensor, slots SlotMap) {
	counts := make([]int, cfg.Width*cfg.Height*cfg.Capacity)

	for i := 0; i < n; i++ {
		cx := clampCell(float64(x.Data[i]), cfg.CellSizeX, cfg.Width)
		cy := clampCell(float64(y.Data[i]), cfg.CellSizeY, cfg.Height)
		cell := cy*cfg.Width + cx
		slot := i % cfg.Capacity
		flatSlot := cell*cfg.Capacity + slot
		slots[i] = flatSlot

		for k := 0; k < d; k++ {
			grid.Data[flatSlot*d+k] += value.Data[i*d+k]
		}
		counts[flatSlot]++
	}

	for flatSlot, count := range counts {
		if count == 0 {
			continue
		}
		for k := 0; k < d; k++ {
			grid.Data[flatSlot*d+k] /= float32(count)
		}
		mask.Data[flatSlot] = 1
	}
}
