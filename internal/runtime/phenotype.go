package runtime

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/tensor"
)

// head is one parameter group's phenotype output: a linear layer from
// the shared hidden representation to |params| columns, followed by
// the group's activation.
type head struct {
	groupName  string
	activation string
	params     []string
	w          *tensor.Tensor // [hidden_len, len(params)]
	b          *tensor.Tensor // [1, len(params)]
}

// Phenotype maps a gene vector to per-group parameter tensors: genes
// -> hidden (ReLU) -> one linear+activation head per group, per
// spec.md §4.4. It is built once from an OutputIR and is stateless
// across steps — there is no backprop, matching the autograd
// Non-goal; weights are drawn once at construction and never updated.
type Phenotype struct {
	geneLen, hiddenLen int
	w1                 *tensor.Tensor // [gene_len, hidden_len]
	b1                 *tensor.Tensor // [1, hidden_len]
	heads              []head         // sorted by group name for determinism
}

// weightScale keeps the randomly drawn phenotype weights small enough
// that ReLU/softmax/tanh heads don't saturate immediately on a freshly
// built network — a small-variance initialization, not a trained one.
const weightScale = 0.1

// NewPhenotype builds a Phenotype's weights from ir's declared
// dimensions and group/param layout, using r for weight sampling.
func NewPhenotype(ir *compiler.OutputIR, r *rand.Rand) (*Phenotype, error) {
	if ir.Constants.GeneLen <= 0 || ir.Constants.HiddenLen <= 0 {
		return nil, fmt.Errorf("runtime: phenotype requires positive gene_len/hidden_len, got %d/%d", ir.Constants.GeneLen, ir.Constants.HiddenLen)
	}

	p := &Phenotype{
		geneLen:   ir.Constants.GeneLen,
		hiddenLen: ir.Constants.HiddenLen,
		w1:        randomTensor(r, []int{ir.Constants.GeneLen, ir.Constants.HiddenLen}),
		b1:        randomTensor(r, []int{1, ir.Constants.HiddenLen}),
	}

	names := make([]string, 0, len(ir.Groups))
	for name := range ir.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := ir.Groups[name]
		k := len(g.Params)
		p.heads = append(p.heads, head{
			groupName:  name,
			activation: g.Activation,
			params:     g.Params,
			w:          randomTensor(r, []int{ir.Constants.HiddenLen, maxInt(k, 1)}),
			b:          randomTensor(r, []int{1, maxInt(k, 1)}),
		})
	}
	return p, nil
}

func randomTensor(r *rand.Rand, shape []int) *tensor.Tensor {
	t := tensor.Zeros(shape)
	for i := range t.Data {
		t.Data[i] = float32(r.NormFloat64()) * weightScale
	}
	return t
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Forward computes {group name -> [N, |params_g|]} from genes [N,
// gene_len], applying each head's declared activation.
func (p *Phenotype) Forward(genes *tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if len(genes.Shape) != 2 || genes.Shape[1] != p.geneLen {
		return nil, fmt.Errorf("runtime: phenotype expects genes shape [N,%d], got %v", p.geneLen, genes.Shape)
	}

	hiddenPre, err := tensor.MatMul(genes, p.w1)
	if err != nil {
		return nil, err
	}
	hiddenPre, err = tensor.Add(hiddenPre, p.b1)
	if err != nil {
		return nil, err
	}
	hidden := tensor.Relu(hiddenPre)

	out := make(map[string]*tensor.Tensor, len(p.heads))
	for _, h := range p.heads {
		if len(h.params) == 0 {
			out[h.groupName] = tensor.Zeros([]int{genes.Shape[0], 0})
			continue
		}
		pre, err := tensor.MatMul(hidden, h.w)
		if err != nil {
			return nil, err
		}
		pre, err = tensor.Add(pre, h.b)
		if err != nil {
			return nil, err
		}
		activated, err := applyActivation(h.activation, pre)
		if err != nil {
			return nil, err
		}
		out[h.groupName] = activated
	}
	return out, nil
}

func applyActivation(kind string, a *tensor.Tensor) (*tensor.Tensor, error) {
	switch kind {
	case "softmax":
		return tensor.Softmax(a, 1)
	case "tanh":
		return tensor.Tanh(a), nil
	case "sigmoid":
		return tensor.Sigmoid(a), nil
	case "none":
		return a, nil
	default:
		return nil, fmt.Errorf("runtime: unknown group activation %q", kind)
	}
}
