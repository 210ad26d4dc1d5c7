package tensor_test

import (
	"testing"

	"github.com/masaori/evolimo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatMul(t *testing.T) {
	a := tensor.New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := tensor.New([]int{3, 2}, []float32{7, 8, 9, 10, 11, 12})
	out, err := tensor.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data)
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	a := tensor.New([]int{2, 3}, []float32{1, 2, 3, 1, 1, 1})
	out, err := tensor.Softmax(a, 1)
	require.NoError(t, err)
	sum, err := out.Sum(1, false)
	require.NoError(t, err)
	for _, v := range sum.Data {
		assert.InDelta(t, 1.0, v, 1e-5)
	}
}

func TestSigmoidBounded(t *testing.T) {
	a := tensor.New([]int{3}, []float32{-10, 0, 10})
	out := tensor.Sigmoid(a)
	assert.InDelta(t, 0.0, out.Data[0], 1e-3)
	assert.InDelta(t, 0.5, out.Data[1], 1e-6)
	assert.InDelta(t, 1.0, out.Data[2], 1e-3)
}

func TestTanhBounded(t *testing.T) {
	a := tensor.New([]int{3}, []float32{-10, 0, 10})
	out := tensor.Tanh(a)
	assert.InDelta(t, -1.0, out.Data[0], 1e-3)
	assert.InDelta(t, 0.0, out.Data[1], 1e-6)
	assert.InDelta(t, 1.0, out.Data[2], 1e-3)
}
