// Package runtime implements the C4 runtime interpreter, the C4
// phenotype engine, and the C6 step driver: everything that consumes
// a compiled OutputIR and actually advances a batch of agents.
//
// Grounded on the teacher's per-frame Update()/workerStep split (one
// function walks a fixed instruction sequence over tensors; the
// heavy numeric work fans out across goroutines inside the tensor and
// grid packages, not here) and on original_source/simulator/src/lib.rs's
// per-step update() entry point.
package runtime

import (
	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/grid"
	"github.com/masaori/evolimo/internal/tensor"
)

// Interpreter walks a compiled operation stream against a named-tensor
// binding environment, per spec.md §4.3.
type Interpreter struct{}

// Execute runs ops against env (which the caller has already
// pre-populated with s_<name> and p_<name> column bindings per
// spec.md §4.3 step 1), mutating env in place and returning it along
// with the accumulated grid capacity-overflow stats.
func (Interpreter) Execute(ops []compiler.Operation, env map[string]*tensor.Tensor, gridCfg *grid.Config) (map[string]*tensor.Tensor, grid.Stats, error) {
	lineage := map[string]string{}
	masks := map[string]*tensor.Tensor{}
	slots := map[string]grid.SlotMap{}
	var stats grid.Stats

	for _, op := range ops {
		if err := execOne(op, env, gridCfg, lineage, masks, slots, &stats); err != nil {
			return nil, stats, err
		}
	}
	return env, stats, nil
}

func execOne(
	op compiler.Operation,
	env map[string]*tensor.Tensor,
	gridCfg *grid.Config,
	lineage map[string]string,
	masks map[string]*tensor.Tensor,
	slots map[string]grid.SlotMap,
	stats *grid.Stats,
) error {
	lookup := func(name string) (*tensor.Tensor, error) {
		t, ok := env[name]
		if !ok {
			return nil, shapeErrorf(op.Op, "unbound reference %q", name)
		}
		return t, nil
	}

	switch op.Op {
	case "ref_param":
		if _, ok := env[op.Target]; !ok {
			return shapeErrorf(op.Op, "parameter %q has no pre-bound column", op.Target)
		}
		return nil

	case "const":
		if op.Value == nil {
			return shapeErrorf(op.Op, "const op missing value")
		}
		env[op.Target] = tensor.Full([]int{1, 1}, float32(*op.Value))
		return nil

	case "assign":
		v, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		env[op.Target] = v
		if root, ok := lineage[op.Args[0]]; ok {
			lineage[op.Target] = root
		}
		return nil

	case "add", "sub", "mul", "div", "lt", "gt", "ge":
		l, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		r, err := lookup(op.Args[1])
		if err != nil {
			return err
		}
		result, err := binaryOp(op.Op, l, r)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "where":
		cond, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		t, err := lookup(op.Args[1])
		if err != nil {
			return err
		}
		f, err := lookup(op.Args[2])
		if err != nil {
			return err
		}
		result, err := tensor.Where(cond, t, f)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "sqrt", "relu", "neg":
		v, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		env[op.Target] = unaryOp(op.Op, v)
		return nil

	case "transpose":
		v, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		if op.Dim0 == nil || op.Dim1 == nil {
			return shapeErrorf(op.Op, "transpose missing dim0/dim1")
		}
		result, err := v.Transpose(*op.Dim0, *op.Dim1)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "sum":
		v, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		if op.Dim == nil {
			return shapeErrorf(op.Op, "sum missing dim")
		}
		keepdim := op.Keepdim != nil && *op.Keepdim
		result, err := v.Sum(*op.Dim, keepdim)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "cat":
		values := make([]*tensor.Tensor, 0, len(op.Args))
		for _, name := range op.Args {
			v, err := lookup(name)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		if op.Dim == nil {
			return shapeErrorf(op.Op, "cat missing dim")
		}
		result, err := tensor.Cat(values, *op.Dim)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "slice":
		v, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		if op.Dim == nil || op.Start == nil || op.Len == nil {
			return shapeErrorf(op.Op, "slice missing dim/start/len")
		}
		result, err := v.Slice(*op.Dim, *op.Start, *op.Len)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	case "grid_scatter":
		if gridCfg == nil {
			return shapeErrorf(op.Op, "grid_scatter with no grid_config")
		}
		value, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		x, err := lookup(op.Args[1])
		if err != nil {
			return err
		}
		y, err := lookup(op.Args[2])
		if err != nil {
			return err
		}
		scattered, mask, slotMap, s, err := grid.Scatter(value, x, y, *gridCfg)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = scattered
		masks[op.Target] = mask
		slots[op.Target] = slotMap
		lineage[op.Target] = op.Target
		stats.Dropped += s.Dropped
		return nil

	case "stencil":
		if op.StencilRange == nil {
			return shapeErrorf(op.Op, "stencil missing stencil_range")
		}
		g, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		root, ok := lineage[op.Args[0]]
		if !ok {
			root = op.Args[0]
		}
		mask, ok := masks[root]
		if !ok {
			return shapeErrorf(op.Op, "stencil input %q has no occupancy mask (was it grid_scatter'd?)", op.Args[0])
		}
		kernel := func(center, neighbor []float32) ([]float32, error) {
			return evalKernel(op.KernelOperations, center, neighbor)
		}
		result, err := grid.Stencil(g, mask, *op.StencilRange, kernel)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		masks[op.Target] = mask
		slots[op.Target] = slots[root]
		lineage[op.Target] = root
		return nil

	case "grid_gather":
		g, err := lookup(op.Args[0])
		if err != nil {
			return err
		}
		root, ok := lineage[op.Args[0]]
		if !ok {
			root = op.Args[0]
		}
		slotMap, ok := slots[root]
		if !ok {
			return shapeErrorf(op.Op, "grid_gather input %q has no recorded slot map", op.Args[0])
		}
		result, err := grid.Gather(g, slotMap)
		if err != nil {
			return shapeErrorf(op.Op, "%s", err)
		}
		env[op.Target] = result
		return nil

	default:
		return shapeErrorf(op.Op, "unknown operation kind")
	}
}

// evalKernel runs one stencil kernel's isolated op list for a single
// (center, neighbor) pair, binding the aux names the compiler used
// (aux_center, aux_neighbor — see internal/compiler's stencilCenterID
// /stencilNeighborID), and returns the sentinel kernel_output binding.
func evalKernel(ops []compiler.Operation, center, neighbor []float32) ([]float32, error) {
	env := map[string]*tensor.Tensor{
		"aux_center":   tensor.New([]int{1, len(center)}, center),
		"aux_neighbor": tensor.New([]int{1, len(neighbor)}, neighbor),
	}
	_, _, err := (Interpreter{}).Execute(ops, env, nil)
	if err != nil {
		return nil, err
	}
	out, ok := env["kernel_output"]
	if !ok {
		return nil, shapeErrorf("stencil", "kernel body produced no kernel_output binding")
	}
	return append([]float32(nil), out.Data...), nil
}

func binaryOp(kind string, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	switch kind {
	case "add":
		return tensor.Add(a, b)
	case "sub":
		return tensor.Sub(a, b)
	case "mul":
		return tensor.Mul(a, b)
	case "div":
		return tensor.Div(a, b)
	case "lt":
		return tensor.Lt(a, b)
	case "gt":
		return tensor.Gt(a, b)
	case "ge":
		return tensor.Ge(a, b)
	}
	panic("runtime: unreachable binary op " + kind)
}

func unaryOp(kind string, a *tensor.Tensor) *tensor.Tensor {
	switch kind {
	case "sqrt":
		return tensor.Sqrt(a)
	case "relu":
		return tensor.Relu(a)
	case "neg":
		return tensor.Neg(a)
	}
	panic("runtime: unreachable unary op " + kind)
}
