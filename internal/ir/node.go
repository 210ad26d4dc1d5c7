// Package ir defines the symbolic expression tree (the DSL surface) that
// definition modules build and the compiler flattens. Every constructor
// here returns a freshly allocated, immutable node; semantic validation
// (unknown groups, missing initialization, …) happens in the compiler,
// never here — this package only shapes the tree.
package ir

// Kind tags the variant of an Expr, matching spec.md's node schema
// one-for-one.
type Kind string

const (
	KindRefState Kind = "ref_state"
	KindRefParam Kind = "ref_param"
	KindRefAux   Kind = "ref_aux"
	KindConst    Kind = "const"

	KindAdd Kind = "add"
	KindSub Kind = "sub"
	KindMul Kind = "mul"
	KindDiv Kind = "div"

	KindLt Kind = "lt"
	KindGt Kind = "gt"
	KindGe Kind = "ge"

	KindWhere Kind = "where"

	KindSqrt Kind = "sqrt"
	KindRelu Kind = "relu"
	KindNeg  Kind = "neg"

	KindTranspose Kind = "transpose"
	KindSum       Kind = "sum"
	KindCat       Kind = "cat"
	KindSlice     Kind = "slice"

	KindGridScatter Kind = "grid_scatter"
	KindStencil     Kind = "stencil"
	KindGridGather  Kind = "grid_gather"
)

// KernelFunc is the host-language closure a stencil carries: it receives
// aux bindings for the center and neighbor slot and returns the
// expression to sum into the center slot. It is expanded into a
// self-contained op list at compile time; the runtime never invokes it.
type KernelFunc func(center, neighbor *Expr) *Expr

// Expr is a node in the immutable expression tree. Only the fields
// relevant to Kind are meaningful; see spec.md §3's field table.
type Expr struct {
	Kind Kind

	// ref_state / ref_aux
	ID string

	// ref_param
	Group string

	// const
	Value float64

	// add/sub/mul/div, lt/gt/ge
	Left, Right *Expr

	// where
	Cond, TrueVal, FalseVal *Expr

	// sqrt/relu/neg, transpose, sum (the operand)
	Operand *Expr

	// transpose
	Dim0, Dim1 int

	// sum, slice, cat
	Dim int

	// sum
	Keepdim bool

	// cat
	Values []*Expr

	// slice
	Start, Len int

	// grid_scatter / grid_gather
	GridValue, X, Y *Expr

	// stencil
	StencilValue *Expr
	Range        int
	Kernel       KernelFunc
}

func RefState(id string) *Expr { return &Expr{Kind: KindRefState, ID: id} }

func RefParam(id, group string) *Expr { return &Expr{Kind: KindRefParam, ID: id, Group: group} }

func RefAux(id string) *Expr { return &Expr{Kind: KindRefAux, ID: id} }

func Const(v float64) *Expr { return &Expr{Kind: KindConst, Value: v} }

func Add(l, r *Expr) *Expr { return &Expr{Kind: KindAdd, Left: l, Right: r} }
func Sub(l, r *Expr) *Expr { return &Expr{Kind: KindSub, Left: l, Right: r} }
func Mul(l, r *Expr) *Expr { return &Expr{Kind: KindMul, Left: l, Right: r} }
func Div(l, r *Expr) *Expr { return &Expr{Kind: KindDiv, Left: l, Right: r} }

func Lt(l, r *Expr) *Expr { return &Expr{Kind: KindLt, Left: l, Right: r} }
func Gt(l, r *Expr) *Expr { return &Expr{Kind: KindGt, Left: l, Right: r} }
func Ge(l, r *Expr) *Expr { return &Expr{Kind: KindGe, Left: l, Right: r} }

func Where(cond, trueVal, falseVal *Expr) *Expr {
	return &Expr{Kind: KindWhere, Cond: cond, TrueVal: trueVal, FalseVal: falseVal}
}

func Sqrt(v *Expr) *Expr { return &Expr{Kind: KindSqrt, Operand: v} }
func Relu(v *Expr) *Expr { return &Expr{Kind: KindRelu, Operand: v} }
func Neg(v *Expr) *Expr  { return &Expr{Kind: KindNeg, Operand: v} }

func Transpose(v *Expr, dim0, dim1 int) *Expr {
	return &Expr{Kind: KindTranspose, Operand: v, Dim0: dim0, Dim1: dim1}
}

func Sum(v *Expr, dim int, keepdim bool) *Expr {
	return &Expr{Kind: KindSum, Operand: v, Dim: dim, Keepdim: keepdim}
}

func Cat(values []*Expr, dim int) *Expr {
	return &Expr{Kind: KindCat, Values: values, Dim: dim}
}

func Slice(v *Expr, dim, start, length int) *Expr {
	return &Expr{Kind: KindSlice, Operand: v, Dim: dim, Start: start, Len: length}
}

func GridScatter(value, x, y *Expr) *Expr {
	return &Expr{Kind: KindGridScatter, GridValue: value, X: x, Y: y}
}

func GridGather(value, x, y *Expr) *Expr {
	return &Expr{Kind: KindGridGather, GridValue: value, X: x, Y: y}
}

func Stencil(value *Expr, rng int, kernel KernelFunc) *Expr {
	return &Expr{Kind: KindStencil, StencilValue: value, Range: rng, Kernel: kernel}
}
