package runtime_test

import (
	"testing"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/runtime"
	"github.com/masaori/evolimo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundaryIR(kind string) *compiler.OutputIR {
	return &compiler.OutputIR{
		StateVars: []string{"pos_x"},
		BoundaryConditions: []compiler.BoundaryIR{
			{TargetState: "pos_x", Kind: kind, Range: [2]float64{-10, 10}},
		},
	}
}

func TestApplyBoundariesTorusWrapsIntoRange(t *testing.T) {
	ir := boundaryIR("torus")
	state := tensor.New([]int{3, 1}, []float32{25, -25, 0})
	require.NoError(t, runtime.ApplyBoundaries(ir, state))
	for _, v := range state.Data {
		assert.GreaterOrEqual(t, float64(v), -10.0)
		assert.Less(t, float64(v), 10.0)
	}
	assert.InDelta(t, 5.0, state.Data[0], 1e-4)
	assert.InDelta(t, -5.0, state.Data[1], 1e-4)
	assert.InDelta(t, 0.0, state.Data[2], 1e-4)
}

func TestApplyBoundariesClampSaturates(t *testing.T) {
	ir := boundaryIR("clamp")
	state := tensor.New([]int{2, 1}, []float32{50, -50})
	require.NoError(t, runtime.ApplyBoundaries(ir, state))
	assert.Equal(t, float32(10), state.Data[0])
	assert.Equal(t, float32(-10), state.Data[1])
}

func TestApplyBoundariesNoneLeavesValuesUntouched(t *testing.T) {
	ir := boundaryIR("none")
	state := tensor.New([]int{1, 1}, []float32{999})
	require.NoError(t, runtime.ApplyBoundaries(ir, state))
	assert.Equal(t, float32(999), state.Data[0])
}
