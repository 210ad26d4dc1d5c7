package compiler

import (
	"fmt"
	"sort"

	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/distribution"
	"github.com/masaori/evolimo/internal/ir"
	"github.com/pkg/errors"
)

// stencilCenterID and stencilNeighborID must match the aux ids the ir
// package's Canonical uses to serialize a stencil's kernel body (see
// ir/canonical.go) — otherwise a kernel's CSE key here would disagree
// with the key Canonical computed for deduplication purposes elsewhere.
const (
	stencilCenterID   = "center"
	stencilNeighborID = "neighbor"
)

// context is one compilation scope: the top-level bundle, or a stencil
// kernel's isolated body. State and parameter references are shared
// with the parent scope (spec.md §4.2 step 2 descends into kernels when
// collecting both), and so is the temp counter, so a kernel temporary
// never reuses an enclosing-scope name. The op list and CSE table are
// not shared — a kernel-local subexpression must never be hoisted into,
// or mistaken for, one in the enclosing scope.
type context struct {
	bundle string

	tempCounter *int
	cse         map[string]string
	ops         []Operation

	stateRefs   map[string]bool
	paramRefs   map[string]map[string]bool
	knownGroups map[string]bool
}

func newRootContext(bundleName string, knownGroups map[string]bool) *context {
	counter := 0
	return &context{
		bundle:      bundleName,
		tempCounter: &counter,
		cse:         map[string]string{},
		stateRefs:   map[string]bool{},
		paramRefs:   map[string]map[string]bool{},
		knownGroups: knownGroups,
	}
}

func (c *context) child() *context {
	return &context{
		bundle:      c.bundle,
		tempCounter: c.tempCounter,
		cse:         map[string]string{},
		stateRefs:   c.stateRefs,
		paramRefs:   c.paramRefs,
		knownGroups: c.knownGroups,
	}
}

func (c *context) newTemp() string {
	name := fmt.Sprintf("temp_%d", *c.tempCounter)
	*c.tempCounter++
	return name
}

func (c *context) emit(op Operation) {
	c.ops = append(c.ops, op)
}

// compileExpr flattens e into c's op list, returning the variable name
// holding its result. Identical subtrees (by canonical form) resolve to
// the same name without re-emitting, which is the compiler's CSE pass.
func (c *context) compileExpr(e *ir.Expr) (string, error) {
	if e == nil {
		return "", newDefinitionError(c.bundle, "nil expression in rule")
	}

	key := ir.Canonical(e)
	if name, ok := c.cse[key]; ok {
		return name, nil
	}

	switch e.Kind {
	case ir.KindRefState:
		c.stateRefs[e.ID] = true
		name := "s_" + e.ID
		c.cse[key] = name
		return name, nil

	case ir.KindRefParam:
		if !c.knownGroups[e.Group] {
			return "", newDefinitionError(c.bundle, fmt.Sprintf("ref_param %q uses unknown parameter group %q", e.ID, e.Group))
		}
		if c.paramRefs[e.Group] == nil {
			c.paramRefs[e.Group] = map[string]bool{}
		}
		c.paramRefs[e.Group][e.ID] = true
		name := "p_" + e.ID
		c.emit(Operation{Target: name, Op: "ref_param", ParamInfo: &ParamInfo{ID: e.ID, Group: e.Group}})
		c.cse[key] = name
		return name, nil

	case ir.KindRefAux:
		name := "aux_" + e.ID
		c.cse[key] = name
		return name, nil

	case ir.KindConst:
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "const", Value: floatPtr(e.Value)})
		c.cse[key] = name
		return name, nil

	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindDiv, ir.KindLt, ir.KindGt, ir.KindGe:
		l, err := c.compileExpr(e.Left)
		if err != nil {
			return "", err
		}
		r, err := c.compileExpr(e.Right)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: string(e.Kind), Args: []string{l, r}})
		c.cse[key] = name
		return name, nil

	case ir.KindWhere:
		cond, err := c.compileExpr(e.Cond)
		if err != nil {
			return "", err
		}
		t, err := c.compileExpr(e.TrueVal)
		if err != nil {
			return "", err
		}
		f, err := c.compileExpr(e.FalseVal)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "where", Args: []string{cond, t, f}})
		c.cse[key] = name
		return name, nil

	case ir.KindSqrt, ir.KindRelu, ir.KindNeg:
		v, err := c.compileExpr(e.Operand)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: string(e.Kind), Args: []string{v}})
		c.cse[key] = name
		return name, nil

	case ir.KindTranspose:
		v, err := c.compileExpr(e.Operand)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "transpose", Args: []string{v}, Dim0: intPtr(e.Dim0), Dim1: intPtr(e.Dim1)})
		c.cse[key] = name
		return name, nil

	case ir.KindSum:
		v, err := c.compileExpr(e.Operand)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "sum", Args: []string{v}, Dim: intPtr(e.Dim), Keepdim: boolPtr(e.Keepdim)})
		c.cse[key] = name
		return name, nil

	case ir.KindCat:
		args := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			vn, err := c.compileExpr(v)
			if err != nil {
				return "", err
			}
			args = append(args, vn)
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "cat", Args: args, Dim: intPtr(e.Dim)})
		c.cse[key] = name
		return name, nil

	case ir.KindSlice:
		v, err := c.compileExpr(e.Operand)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "slice", Args: []string{v}, Dim: intPtr(e.Dim), Start: intPtr(e.Start), Len: intPtr(e.Len)})
		c.cse[key] = name
		return name, nil

	case ir.KindGridScatter:
		v, err := c.compileExpr(e.GridValue)
		if err != nil {
			return "", err
		}
		x, err := c.compileExpr(e.X)
		if err != nil {
			return "", err
		}
		y, err := c.compileExpr(e.Y)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "grid_scatter", Args: []string{v, x, y}})
		c.cse[key] = name
		return name, nil

	case ir.KindGridGather:
		v, err := c.compileExpr(e.GridValue)
		if err != nil {
			return "", err
		}
		x, err := c.compileExpr(e.X)
		if err != nil {
			return "", err
		}
		y, err := c.compileExpr(e.Y)
		if err != nil {
			return "", err
		}
		name := c.newTemp()
		c.emit(Operation{Target: name, Op: "grid_gather", Args: []string{v, x, y}})
		c.cse[key] = name
		return name, nil

	case ir.KindStencil:
		if e.Kernel == nil {
			return "", newDefinitionError(c.bundle, "stencil has no kernel")
		}
		v, err := c.compileExpr(e.StencilValue)
		if err != nil {
			return "", err
		}
		kernelCtx := c.child()
		body := e.Kernel(ir.RefAux(stencilCenterID), ir.RefAux(stencilNeighborID))
		result, err := kernelCtx.compileExpr(body)
		if err != nil {
			return "", err
		}
		kernelCtx.emit(Operation{Target: "kernel_output", Op: "assign", Args: []string{result}})

		name := c.newTemp()
		c.emit(Operation{
			Target:           name,
			Op:               "stencil",
			Args:             []string{v},
			StencilRange:     intPtr(e.Range),
			KernelOperations: kernelCtx.ops,
		})
		c.cse[key] = name
		return name, nil

	default:
		return "", newDefinitionError(c.bundle, fmt.Sprintf("unknown expression kind %q", e.Kind))
	}
}

// Compile flattens one definition.Bundle into its OutputIR, per
// spec.md §4.2's six-step process: collect state vars, collect
// parameter groups (descending into stencil kernels), flatten each
// rule with CSE, compile stencils into isolated kernel_operations,
// emit terminal assignments, and fill in pass-throughs for state vars
// no rule writes.
func Compile(b definition.Bundle) (*OutputIR, error) {
	knownGroups := make(map[string]bool, len(b.ParameterGroups))
	for name := range b.ParameterGroups {
		knownGroups[name] = true
	}

	root := newRootContext(b.Name, knownGroups)

	written := make(map[string]bool, len(b.Rules))
	for _, rule := range b.Rules {
		if written[rule.TargetState] {
			return nil, newDefinitionError(b.Name, "state var "+rule.TargetState+" is assigned by more than one rule")
		}
		v, err := root.compileExpr(rule.Expr)
		if err != nil {
			return nil, err
		}
		root.stateRefs[rule.TargetState] = true
		root.emit(Operation{Target: rule.TargetState, Op: "assign", Args: []string{v}})
		written[rule.TargetState] = true
	}

	stateVars := orderStateVars(b.StateVarOrder, root.stateRefs)

	for _, name := range stateVars {
		if written[name] {
			continue
		}
		root.emit(Operation{Target: name, Op: "assign", Args: []string{"s_" + name}})
	}

	groups := buildGroups(b.ParameterGroups, root.paramRefs)

	init, err := buildInitialization(b.Name, stateVars, b.Init)
	if err != nil {
		return nil, err
	}

	return &OutputIR{
		StateVars:          stateVars,
		Constants:          Constants{NAgents: b.NAgents, GeneLen: b.GeneLen, HiddenLen: b.HiddenLen},
		GridConfig:         buildGridConfig(b.Grid),
		Groups:             groups,
		BoundaryConditions: buildBoundaries(b.Boundaries),
		Initialization:     init,
		Operations:         root.ops,
	}, nil
}

// Compiled bundles one module's IR with the visual mapping that never
// participates in compilation — the runtime's caller consumes it
// untouched, per spec.md §4.7.
type Compiled struct {
	Name   string
	IR     *OutputIR
	Visual *definition.VisualMapping
}

// CompileAll compiles every bundle, in the order given, wrapping the
// first failure with the offending bundle's name.
func CompileAll(bundles []definition.Bundle) ([]Compiled, error) {
	out := make([]Compiled, 0, len(bundles))
	for _, b := range bundles {
		out_ir, err := Compile(b)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling definition module %q", b.Name)
		}
		out = append(out, Compiled{Name: b.Name, IR: out_ir, Visual: b.Visual})
	}
	return out, nil
}

// orderStateVars keeps every declared var, in declared order — a
// state var that nothing ever reads or writes still occupies a
// column and still gets a pass-through op, so a definition module can
// carry purely descriptive state (e.g. a type tag another system
// reads from the replay) — then appends the lexical remainder: vars
// referenced by some rule but absent from the declared order.
func orderStateVars(declared []string, refs map[string]bool) []string {
	declaredSet := make(map[string]bool, len(declared))
	for _, name := range declared {
		declaredSet[name] = true
	}

	out := append([]string(nil), declared...)
	var remainder []string
	for name := range refs {
		if !declaredSet[name] {
			remainder = append(remainder, name)
		}
	}
	sort.Strings(remainder)
	return append(out, remainder...)
}

// buildGroups reports, for each declared parameter group, the sorted
// set of parameter ids actually referenced anywhere in the bundle
// (including inside stencil kernel bodies). A declared group nobody
// references compiles to an empty Params list rather than being
// dropped — the phenotype engine still owns its activation head.
func buildGroups(declared definition.ParameterGroups, refs map[string]map[string]bool) map[string]GroupIR {
	out := make(map[string]GroupIR, len(declared))
	for name, activation := range declared {
		ids := make([]string, 0, len(refs[name]))
		for id := range refs[name] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[name] = GroupIR{Activation: string(activation), Params: ids}
	}
	return out
}

func buildInitialization(bundleName string, stateVars []string, init definition.Initialization) (InitializationIR, error) {
	state := make(map[string]DistributionIR, len(stateVars))
	for _, name := range stateVars {
		d, ok := init.State[name]
		if !ok {
			return InitializationIR{}, newDefinitionError(bundleName, "state var "+name+" has no initialization distribution")
		}
		if err := distribution.Validate(d); err != nil {
			return InitializationIR{}, newDefinitionError(bundleName, "state var "+name+": "+err.Error())
		}
		state[name] = toDistributionIR(d)
	}
	if init.Genes.Kind == "" {
		return InitializationIR{}, newDefinitionError(bundleName, "gene vector has no initialization distribution")
	}
	if err := distribution.Validate(init.Genes); err != nil {
		return InitializationIR{}, newDefinitionError(bundleName, "gene vector: "+err.Error())
	}
	return InitializationIR{State: state, Genes: toDistributionIR(init.Genes)}, nil
}

func toDistributionIR(d definition.Distribution) DistributionIR {
	return DistributionIR{
		Kind:  string(d.Kind),
		Value: d.Value,
		Low:   d.Low,
		High:  d.High,
		Mean:  d.Mean,
		Std:   d.Std,
	}
}

func buildGridConfig(g *definition.GridConfig) *GridConfigIR {
	if g == nil {
		return nil
	}
	return &GridConfigIR{
		Width:    g.Width,
		Height:   g.Height,
		Capacity: g.Capacity,
		CellSize: [2]float64{g.CellSizeX, g.CellSizeY},
	}
}

func buildBoundaries(bs []definition.Boundary) []BoundaryIR {
	out := make([]BoundaryIR, 0, len(bs))
	for _, b := range bs {
		out = append(out, BoundaryIR{
			TargetState: b.TargetState,
			Kind:        string(b.Kind),
			Range:       [2]float64{b.Min, b.Max},
		})
	}
	return out
}
