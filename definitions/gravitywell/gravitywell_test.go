package gravitywell

import (
	"context"
	"math"
	"testing"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/ir"
	"github.com/masaori/evolimo/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCompiles(t *testing.T) {
	out, err := compiler.Compile(build())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"pos_x", "pos_y", "vel_x", "vel_y", "mass", "near_origin", "energy"}, out.StateVars)
	assert.Contains(t, out.Groups, "DRAG")
	assert.Contains(t, out.Groups, "ATTR")
	assert.ElementsMatch(t, []string{"metabolism", "move_cost"}, out.Groups["ATTR"].Params)

	require.NotNil(t, out.GridConfig)
	assert.Equal(t, 20, out.GridConfig.Width)

	var sawStencil, sawPassThroughEnergy bool
	for _, op := range out.Operations {
		if op.Op == "stencil" {
			sawStencil = true
		}
		if op.Op == "assign" && op.Target == "energy" && len(op.Args) == 1 && op.Args[0] == "s_energy" {
			sawPassThroughEnergy = true
		}
	}
	assert.True(t, sawStencil, "expected a stencil op from the gravity kernel")
	assert.True(t, sawPassThroughEnergy, "energy has no rule and must pass through unchanged")
}

// ungatedGravityBundle mirrors build()'s scatter/stencil/gather gravity
// pipeline but lets velocity accumulate the force delta directly (no
// DRAG decay), so the only thing moving velocity is the pairwise
// stencil force — the precondition for checking momentum conservation.
func ungatedGravityBundle() definition.Bundle {
	posX, posY := ir.RefState("pos_x"), ir.RefState("pos_y")
	velX, velY := ir.RefState("vel_x"), ir.RefState("vel_y")
	mass := ir.RefState("mass")
	zeroCol := ir.Mul(mass, ir.Const(0))

	value := ir.Cat([]*ir.Expr{mass, posX, posY, zeroCol, zeroCol}, 1)
	grid := ir.GridScatter(value, posX, posY)
	stenciled := ir.Stencil(grid, 1, gravityKernel)
	gathered := ir.GridGather(stenciled, posX, posY)
	dvx := ir.Slice(gathered, 1, 3, 1)
	dvy := ir.Slice(gathered, 1, 4, 1)

	return definition.Bundle{
		Name:          "gravitywell-ungated",
		StateVarOrder: []string{"pos_x", "pos_y", "vel_x", "vel_y", "mass"},
		Rules: []definition.Rule{
			{TargetState: "vel_x", Expr: ir.Add(velX, dvx)},
			{TargetState: "vel_y", Expr: ir.Add(velY, dvy)},
			{TargetState: "pos_x", Expr: ir.Add(posX, velX)},
			{TargetState: "pos_y", Expr: ir.Add(posY, velY)},
		},
		Boundaries: []definition.Boundary{
			{TargetState: "pos_x", Kind: definition.BoundaryTorus, Min: -10, Max: 10},
			{TargetState: "pos_y", Kind: definition.BoundaryTorus, Min: -10, Max: 10},
		},
		Grid: &definition.GridConfig{
			Width: 20, Height: 20, Capacity: 4,
			CellSizeX: 1, CellSizeY: 1,
		},
		Init: definition.Initialization{
			State: map[string]definition.Distribution{
				"pos_x": definition.Uniform(-8, 8),
				"pos_y": definition.Uniform(-8, 8),
				"vel_x": definition.Normal(0, 0.1),
				"vel_y": definition.Normal(0, 0.1),
				"mass":  definition.Uniform(0.5, 2),
			},
			Genes: definition.Uniform(-1, 1),
		},
		NAgents: 16, GeneLen: 4, HiddenLen: 8,
	}
}

// TestGravityStencilConservesMomentum checks spec.md §8's "Grid gravity
// convergence" scenario: the pairwise force the stencil kernel computes
// is equal and opposite for the two cells in a pair (same dx, dy just
// flips sign, masses swap), so summed over every agent the
// mass-weighted velocity change should cancel to within float32
// rounding error.
func TestGravityStencilConservesMomentum(t *testing.T) {
	out, err := compiler.Compile(ungatedGravityBundle())
	require.NoError(t, err)

	d, err := runtime.NewDriver(out, 13)
	require.NoError(t, err)

	before, _ := d.Snapshot()
	nCols := len(out.StateVars)
	massIdx, velXIdx, velYIdx := indexOf(out.StateVars, "mass"), indexOf(out.StateVars, "vel_x"), indexOf(out.StateVars, "vel_y")
	n := before.Shape[0]
	mass0 := column(before.Data, nCols, massIdx, n)
	velX0 := column(before.Data, nCols, velXIdx, n)
	velY0 := column(before.Data, nCols, velYIdx, n)

	require.NoError(t, d.Step(context.Background()))

	after, _ := d.Snapshot()
	velX1 := column(after.Data, nCols, velXIdx, n)
	velY1 := column(after.Data, nCols, velYIdx, n)

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += float64(mass0[i]) * float64(velX1[i]-velX0[i])
		sumY += float64(mass0[i]) * float64(velY1[i]-velY0[i])
	}
	assert.Less(t, math.Abs(sumX), 1e-4, "sum of mass*delta_vx should cancel under Newton's third law")
	assert.Less(t, math.Abs(sumY), 1e-4, "sum of mass*delta_vy should cancel under Newton's third law")
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}

// column reads a row-major [n, nCols] buffer's col-th column.
func column(data []float32, nCols, col, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = data[i*nCols+col]
	}
	return out
}

func TestRegistersUnderItsName(t *testing.T) {
	// build was already registered by this package's init(); re-registering
	// would panic, so just confirm the registry has it.
	b, ok := definition.Lookup("gravitywell")
	require.True(t, ok)
	assert.Equal(t, "gravitywell", b.Name)
}
