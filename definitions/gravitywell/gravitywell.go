// Package gravitywell registers a definition module combining every
// op family the compiler supports: a grid-scattered gravity stencil
// with the original's softening constant, a sigmoid drag group, a
// softmax attribute group, a conditional rule, and a pass-through
// state var, on a torus world.
package gravitywell

import (
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/ir"
)

func init() {
	definition.Register("gravitywell", build)
}

// gravitySoftening matches the softening term original_source's
// pairwise force stencil adds to squared distance before inverting,
// avoiding a divide-by-zero on the self-adjacent (dy=dx=0) offset's
// surviving same-cell neighbors.
const gravitySoftening = 0.01

func build() definition.Bundle {
	posX, posY := ir.RefState("pos_x"), ir.RefState("pos_y")
	velX, velY := ir.RefState("vel_x"), ir.RefState("vel_y")
	mass := ir.RefState("mass")
	zeroCol := ir.Mul(mass, ir.Const(0))

	// Scatter (mass, pos_x, pos_y, 0, 0) per agent; the stencil kernel
	// reads the first three channels and writes a force delta into the
	// last two, which grid_gather then hands back as [N,5].
	value := ir.Cat([]*ir.Expr{mass, posX, posY, zeroCol, zeroCol}, 1)
	grid := ir.GridScatter(value, posX, posY)
	stenciled := ir.Stencil(grid, 1, gravityKernel)
	gathered := ir.GridGather(stenciled, posX, posY)
	dvx := ir.Slice(gathered, 1, 3, 1)
	dvy := ir.Slice(gathered, 1, 4, 1)

	drag := ir.RefParam("coefficient", "DRAG")

	newVelX := ir.Add(ir.Mul(velX, drag), dvx)
	newVelY := ir.Add(ir.Mul(velY, drag), dvy)
	newPosX := ir.Add(posX, velX)
	newPosY := ir.Add(posY, velY)
	nearOrigin := ir.Where(ir.Gt(posX, ir.Const(0)), ir.Const(1), ir.Const(0))

	return definition.Bundle{
		Name:          "gravitywell",
		StateVarOrder: []string{"pos_x", "pos_y", "vel_x", "vel_y", "mass", "near_origin", "energy"},
		ParameterGroups: definition.ParameterGroups{
			"DRAG": definition.ActivationSigmoid,
			"ATTR": definition.ActivationSoftmax,
		},
		Rules: []definition.Rule{
			{TargetState: "vel_x", Expr: newVelX},
			{TargetState: "vel_y", Expr: newVelY},
			{TargetState: "pos_x", Expr: newPosX},
			{TargetState: "pos_y", Expr: newPosY},
			{TargetState: "near_origin", Expr: nearOrigin},
			// metabolism/move_cost are never applied to state here —
			// an evolutionary driver outside this core's scope would
			// spend them — but referencing both keeps the ATTR group's
			// phenotype head wired to something compiled.
			{TargetState: "mass", Expr: ir.Add(mass, ir.Mul(
				ir.Add(ir.RefParam("metabolism", "ATTR"), ir.RefParam("move_cost", "ATTR")),
				ir.Const(0),
			))},
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
				"pos_x":       definition.Uniform(-10, 10),
				"pos_y":       definition.Uniform(-10, 10),
				"vel_x":       definition.Normal(0, 0.1),
				"vel_y":       definition.Normal(0, 0.1),
				"mass":        definition.Uniform(0.5, 2),
				"near_origin": definition.Const(0),
				"energy":      definition.Const(100),
			},
			Genes: definition.Uniform(-1, 1),
		},
		Visual: &definition.VisualMapping{
			PositionX: "pos_x",
			PositionY: "pos_y",
			Size:      "mass",
		},
		NAgents: 64, GeneLen: 8, HiddenLen: 32,
	}
}

// gravityKernel is the stencil's pairwise accumulation: given this
// cell's (mass, pos_x, pos_y, _, _) and a neighbor's, it returns the
// Newtonian attraction delta in channels 3 and 4, leaving the rest
// zero so it adds cleanly into the center slot's own five channels.
func gravityKernel(center, neighbor *ir.Expr) *ir.Expr {
	cx, cy := ir.Slice(center, 1, 1, 1), ir.Slice(center, 1, 2, 1)
	nx, ny := ir.Slice(neighbor, 1, 1, 1), ir.Slice(neighbor, 1, 2, 1)
	nm := ir.Slice(neighbor, 1, 0, 1)

	dx := ir.Sub(nx, cx)
	dy := ir.Sub(ny, cy)
	dist2 := ir.Add(ir.Add(ir.Mul(dx, dx), ir.Mul(dy, dy)), ir.Const(gravitySoftening))
	invDist := ir.Div(ir.Const(1), ir.Sqrt(dist2))
	invDist3 := ir.Mul(ir.Mul(invDist, invDist), invDist)

	fx := ir.Mul(nm, ir.Mul(dx, invDist3))
	fy := ir.Mul(nm, ir.Mul(dy, invDist3))
	zero := ir.Const(0)

	return ir.Cat([]*ir.Expr{zero, zero, zero, fx, fy}, 1)
}
