package runtime

import (
	"math/rand"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/distribution"
	"github.com/masaori/evolimo/internal/tensor"
)

// toDistribution recovers the definition.Distribution a compiled
// DistributionIR was serialized from, so sampling goes through the
// one sampler internal/distribution already provides instead of a
// second copy of the same const/uniform/normal switch.
func toDistribution(d compiler.DistributionIR) definition.Distribution {
	return definition.Distribution{
		Kind:  definition.DistributionKind(d.Kind),
		Value: d.Value,
		Low:   d.Low,
		High:  d.High,
		Mean:  d.Mean,
		Std:   d.Std,
	}
}

// InitState allocates the [N, S] state tensor from ir's
// initialization.state distributions, column order matching
// ir.StateVars exactly (spec.md §4.6 step i).
func InitState(ir *compiler.OutputIR, r *rand.Rand) (*tensor.Tensor, error) {
	n := ir.Constants.NAgents
	cols := make([]*tensor.Tensor, len(ir.StateVars))
	for i, name := range ir.StateVars {
		d := toDistribution(ir.Initialization.State[name])
		data := make([]float32, n)
		for j, v := range distribution.Column(r, d, n) {
			data[j] = float32(v)
		}
		cols[i] = tensor.New([]int{n, 1}, data)
	}
	return tensor.Cat(cols, 1)
}

// InitGenes allocates the [N, gene_len] gene matrix from ir's
// initialization.genes distribution.
func InitGenes(ir *compiler.OutputIR, r *rand.Rand) *tensor.Tensor {
	n, g := ir.Constants.NAgents, ir.Constants.GeneLen
	d := toDistribution(ir.Initialization.Genes)
	data32 := make([]float32, n*g)
	for i, v := range distribution.Matrix(r, d, n, g) {
		data32[i] = float32(v)
	}
	return tensor.New([]int{n, g}, data32)
}
