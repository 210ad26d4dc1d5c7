// Package grid implements the fixed-capacity spatial grid engine: the
// scatter → stencil → gather path that turns an O(N²) neighbor
// interaction into a near-linear one by bucketing agents into cells
// and only letting a cell's occupants interact with nearby cells.
//
// Grounded on original_source/simulator/src/grid.rs's
// particles_to_grid/solve_gravity_stencil/grid_to_particles, adapted
// from candle_core Tensor ops to direct indexing into
// internal/tensor.Tensor, and on the teacher's wrap() torus helper
// (present in every teacher file) used here in place of the original's
// padded-tensor construction — wrapping indices directly is equivalent
// and avoids materializing a second, larger tensor per stencil pass.
package grid

import "math"

// Config is the fixed-capacity uniform grid's geometry.
type Config struct {
	Width, Height, Capacity int
	CellSizeX, CellSizeY    float64
}

// CollisionMode selects how Scatter resolves more agents landing in a
// cell than it has capacity for.
type CollisionMode int

const (
	// DropOverflow is the primary, documented policy: slots are filled
	// in agent-iteration order, and agents beyond capacity are dropped
	// from this step's interaction computation (spec.md §4.5, §5).
	DropOverflow CollisionMode = iota
	// AverageOverflow reproduces the original Rust implementation's
	// hash-based slot assignment (particle index mod capacity) with
	// colliding particles averaged into the shared slot, rather than
	// arrival order deciding a winner. See SPEC_FULL.md §11.
	AverageOverflow
)

// Stats reports capacity-overflow counts for one Scatter call. A
// capacity overflow is a metric, not an error (spec.md §7).
type Stats struct {
	Dropped int
}

func wrap(x, m int) int {
	if x >= 0 {
		return x % m
	}
	return (x%m + m) % m
}

// clampCell maps a world coordinate to a cell index, clamped into
// range — spec.md §4.5's documented cell-index rule. Torus worlds feed
// already-wrapped coordinates, so clamping (not wrapping) here is
// correct for every caller.
func clampCell(v, cellSize float64, numCells int) int {
	c := int(math.Floor(v / cellSize))
	if c < 0 {
		c = 0
	}
	if c >= numCells {
		c = numCells - 1
	}
	return c
}
