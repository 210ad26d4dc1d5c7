package runtime_test

import (
	"context"
	"testing"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/ir"
	"github.com/masaori/evolimo/internal/runtime"
	"github.com/masaori/evolimo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func torusBundle() definition.Bundle {
	return definition.Bundle{
		Name:          "torus-wrap",
		StateVarOrder: []string{"pos_x"},
		Rules: []definition.Rule{
			{TargetState: "pos_x", Expr: ir.Add(ir.RefState("pos_x"), ir.Const(30))},
		},
		Boundaries: []definition.Boundary{
			{TargetState: "pos_x", Kind: definition.BoundaryTorus, Min: -10, Max: 10},
		},
		Init: definition.Initialization{
			State: map[string]definition.Distribution{"pos_x": definition.Uniform(-10, 10)},
			Genes: definition.Uniform(0, 1),
		},
		NAgents: 6, GeneLen: 2, HiddenLen: 4,
	}
}

func TestDriverStepWrapsPositionOnTorusBoundary(t *testing.T) {
	b := torusBundle()
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	d, err := runtime.NewDriver(out, 42)
	require.NoError(t, err)

	require.NoError(t, d.Step(context.Background()))

	state, _ := d.Snapshot()
	assert.Equal(t, 1, d.Frame())
	for _, v := range state.Data {
		assert.GreaterOrEqual(t, float64(v), -10.0)
		assert.Less(t, float64(v), 10.0)
	}
}

func TestDriverStepPassThroughLeavesUnreferencedStateUnchanged(t *testing.T) {
	b := definition.Bundle{
		Name:          "pass-through",
		StateVarOrder: []string{"energy"},
		Init: definition.Initialization{
			State: map[string]definition.Distribution{"energy": definition.Const(100)},
			Genes: definition.Const(0),
		},
		NAgents: 3, GeneLen: 1, HiddenLen: 2,
	}
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	d, err := runtime.NewDriver(out, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Step(context.Background()))
	}
	state, _ := d.Snapshot()
	for _, v := range state.Data {
		assert.Equal(t, float32(100), v)
	}
}

func TestDriverProducesIdenticalTrajectoriesForIdenticalSeeds(t *testing.T) {
	b := torusBundle()
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	run := func() *tensor.Tensor {
		d, err := runtime.NewDriver(out, 99)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, d.Step(context.Background()))
		}
		state, _ := d.Snapshot()
		return state
	}

	a, b2 := run(), run()
	assert.Equal(t, a, b2, "two drivers built from the same IR and seed must produce identical state trajectories")
}

func TestDriverStepHonorsCanceledContext(t *testing.T) {
	b := torusBundle()
	out, err := compiler.Compile(b)
	require.NoError(t, err)

	d, err := runtime.NewDriver(out, 7)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, d.Step(ctx))
	assert.Equal(t, 0, d.Frame())
}
