package compiler_test

import (
	"testing"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dragBundle() definition.Bundle {
	return definition.Bundle{
		Name:          "drag",
		StateVarOrder: []string{"vel_x", "pos_x"},
		ParameterGroups: definition.ParameterGroups{
			"DRAG": definition.ActivationSigmoid,
		},
		Rules: []definition.Rule{
			{
				TargetState: "vel_x",
				Expr: ir.Mul(
					ir.RefState("vel_x"),
					ir.RefParam("coefficient", "DRAG"),
				),
			},
		},
		Init: definition.Initialization{
			State: map[string]definition.Distribution{
				"vel_x": definition.Uniform(-1, 1),
				"pos_x": definition.Const(0),
			},
			Genes: definition.Uniform(0, 1),
		},
		NAgents: 8, GeneLen: 4, HiddenLen: 16,
	}
}

func TestCompileDragOnlyProducesAssignAndRefParam(t *testing.T) {
	b := dragBundle()
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	assert.Equal(t, []string{"vel_x", "pos_x"}, out.StateVars)
	assert.Contains(t, out.Groups, "DRAG")
	assert.Equal(t, []string{"coefficient"}, out.Groups["DRAG"].Params)

	var sawRefParam, sawAssignVelX, sawPassThroughPosX bool
	for _, op := range out.Operations {
		switch {
		case op.Op == "ref_param" && op.Target == "p_coefficient":
			sawRefParam = true
		case op.Op == "assign" && op.Target == "vel_x":
			sawAssignVelX = true
		case op.Op == "assign" && op.Target == "pos_x" && len(op.Args) == 1 && op.Args[0] == "s_pos_x":
			sawPassThroughPosX = true
		}
	}
	assert.True(t, sawRefParam, "expected a ref_param op for the DRAG coefficient")
	assert.True(t, sawAssignVelX, "expected a terminal assign op for vel_x")
	assert.True(t, sawPassThroughPosX, "pos_x has no rule and must pass through unchanged")
}

func TestCompileRejectsUnknownGroup(t *testing.T) {
	b := dragBundle()
	b.Rules[0].Expr = ir.RefParam("x", "NOPE")
	_, err := compiler.Compile(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter group")
}

func TestCompileRejectsMissingInitialization(t *testing.T) {
	b := dragBundle()
	delete(b.Init.State, "pos_x")
	_, err := compiler.Compile(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos_x")
}

func TestCompileDedupesSharedSubexpressions(t *testing.T) {
	b := dragBundle()
	shared := ir.Add(ir.RefState("vel_x"), ir.Const(1))
	b.Rules = []definition.Rule{
		{TargetState: "vel_x", Expr: ir.Mul(shared, ir.Const(2))},
		{TargetState: "pos_x", Expr: ir.Sub(shared, ir.Const(3))},
	}
	b.StateVarOrder = []string{"vel_x", "pos_x"}

	out, err := compiler.Compile(b)
	require.NoError(t, err)

	addCount := 0
	for _, op := range out.Operations {
		if op.Op == "add" {
			addCount++
		}
	}
	assert.Equal(t, 1, addCount, "the shared add(vel_x, 1) subexpression must only be emitted once")
}

func TestCompileStencilIsolatesKernelOperations(t *testing.T) {
	b := dragBundle()
	grid := ir.RefAux("mass_grid")
	kernel := func(center, neighbor *ir.Expr) *ir.Expr { return ir.Sub(neighbor, center) }
	b.Rules = []definition.Rule{
		{TargetState: "vel_x", Expr: ir.Stencil(grid, 1, kernel)},
	}

	out, err := compiler.Compile(b)
	require.NoError(t, err)

	var stencilOp *compiler.Operation
	for i := range out.Operations {
		if out.Operations[i].Op == "stencil" {
			stencilOp = &out.Operations[i]
		}
	}
	require.NotNil(t, stencilOp, "expected a stencil op")
	require.NotEmpty(t, stencilOp.KernelOperations)

	last := stencilOp.KernelOperations[len(stencilOp.KernelOperations)-1]
	assert.Equal(t, "kernel_output", last.Target)
	assert.Equal(t, "sub", stencilOp.KernelOperations[0].Op)
}

func TestCompileKeepsDeclaredStateVarsEvenWhenUnreferenced(t *testing.T) {
	b := definition.Bundle{
		Name:          "energy",
		StateVarOrder: []string{"energy"},
		Init: definition.Initialization{
			State: map[string]definition.Distribution{"energy": definition.Const(100)},
			Genes: definition.Const(0),
		},
		NAgents: 2, GeneLen: 1, HiddenLen: 1,
	}
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	assert.Equal(t, []string{"energy"}, out.StateVars)
	require.Len(t, out.Operations, 1)
	assert.Equal(t, compiler.Operation{Target: "energy", Op: "assign", Args: []string{"s_energy"}}, out.Operations[0])
}

func TestCompileRejectsDegenerateUniformDistribution(t *testing.T) {
	b := dragBundle()
	b.Init.State["pos_x"] = definition.Uniform(5, -5)
	_, err := compiler.Compile(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos_x")
}

func TestCompileRejectsNegativeStdGeneDistribution(t *testing.T) {
	b := dragBundle()
	b.Init.Genes = definition.Normal(0, -1)
	_, err := compiler.Compile(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gene vector")
}

func TestCompileAllWrapsBundleNameOnFailure(t *testing.T) {
	bad := dragBundle()
	bad.Rules[0].Expr = ir.RefParam("x", "NOPE")
	_, err := compiler.CompileAll([]definition.Bundle{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drag")
}
