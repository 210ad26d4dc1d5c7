package runtime_test

import (
	"testing"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/grid"
	"github.com/masaori/evolimo/internal/runtime"
	"github.com/masaori/evolimo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestExecuteConditionalWhere(t *testing.T) {
	ops := []compiler.Operation{
		{Target: "temp_0", Op: "const", Value: floatPtr(0)},
		{Target: "temp_1", Op: "gt", Args: []string{"s_pos_x", "temp_0"}},
		{Target: "temp_2", Op: "const", Value: floatPtr(1)},
		{Target: "size", Op: "where", Args: []string{"temp_1", "temp_2", "temp_0"}},
	}
	env := map[string]*tensor.Tensor{
		"s_pos_x": tensor.New([]int{2, 1}, []float32{5, -5}),
	}
	out, _, err := (runtime.Interpreter{}).Execute(ops, env, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(1), out["size"].Data[0])
	assert.Equal(t, float32(0), out["size"].Data[1])
}

func TestExecuteUnboundReferenceIsShapeError(t *testing.T) {
	ops := []compiler.Operation{
		{Target: "x", Op: "assign", Args: []string{"s_missing"}},
	}
	_, _, err := (runtime.Interpreter{}).Execute(ops, map[string]*tensor.Tensor{}, nil)
	require.Error(t, err)
	var shapeErr *runtime.ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestExecuteScatterStencilGatherRoundTrip(t *testing.T) {
	ops := []compiler.Operation{
		{Target: "g", Op: "grid_scatter", Args: []string{"s_mass", "s_x", "s_y"}},
		{
			Target:       "g2",
			Op:           "stencil",
			Args:         []string{"g"},
			StencilRange: intPtr(1),
			KernelOperations: []compiler.Operation{
				{Target: "kernel_output", Op: "sub", Args: []string{"aux_neighbor", "aux_center"}},
			},
		},
		{Target: "out", Op: "grid_gather", Args: []string{"g2"}},
	}
	env := map[string]*tensor.Tensor{
		"s_mass": tensor.New([]int{2, 1}, []float32{1, 2}),
		"s_x":    tensor.New([]int{2, 1}, []float32{0, 1}),
		"s_y":    tensor.New([]int{2, 1}, []float32{0, 0}),
	}
	cfg := &grid.Config{Width: 5, Height: 5, Capacity: 1, CellSizeX: 1, CellSizeY: 1}
	out, stats, err := (runtime.Interpreter{}).Execute(ops, env, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Dropped)
	assert.Len(t, out["out"].Data, 2)
	assert.InDelta(t, 1.0, out["out"].Data[0], 1e-6)
	assert.InDelta(t, -1.0, out["out"].Data[1], 1e-6)
}
