package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// stencilCenter and stencilNeighbor are the fixed aux bindings used both
// to canonicalize a stencil's kernel body for CSE and, in the compiler,
// to actually bind the kernel during compilation (see spec.md §4.2 step
// 4). Using the same two names everywhere means two syntactically
// identical kernels always canonicalize identically.
const (
	stencilCenter   = "center"
	stencilNeighbor = "neighbor"
)

// Canonical returns a deterministic string form of e's subtree, used by
// the compiler as a structural-hash key for common subexpression
// elimination. Two structurally identical subtrees — including, for
// stencil nodes, the serialized kernel body — produce the same string;
// this is what lets two syntactically identical stencils collapse while
// semantically different ones do not, per spec.md's CSE invariant.
func Canonical(e *Expr) string {
	var b strings.Builder
	writeCanonical(&b, e)
	return b.String()
}

func writeCanonical(b *strings.Builder, e *Expr) {
	if e == nil {
		b.WriteString("nil")
		return
	}
	switch e.Kind {
	case KindRefState:
		fmt.Fprintf(b, "s(%s)", e.ID)
	case KindRefParam:
		fmt.Fprintf(b, "p(%s,%s)", e.Group, e.ID)
	case KindRefAux:
		fmt.Fprintf(b, "aux(%s)", e.ID)
	case KindConst:
		fmt.Fprintf(b, "c(%s)", strconv.FormatFloat(e.Value, 'g', -1, 64))
	case KindAdd, KindSub, KindMul, KindDiv, KindLt, KindGt, KindGe:
		b.WriteString(string(e.Kind))
		b.WriteByte('(')
		writeCanonical(b, e.Left)
		b.WriteByte(',')
		writeCanonical(b, e.Right)
		b.WriteByte(')')
	case KindWhere:
		b.WriteString("where(")
		writeCanonical(b, e.Cond)
		b.WriteByte(',')
		writeCanonical(b, e.TrueVal)
		b.WriteByte(',')
		writeCanonical(b, e.FalseVal)
		b.WriteByte(')')
	case KindSqrt, KindRelu, KindNeg:
		b.WriteString(string(e.Kind))
		b.WriteByte('(')
		writeCanonical(b, e.Operand)
		b.WriteByte(')')
	case KindTranspose:
		fmt.Fprintf(b, "transpose(%d,%d,", e.Dim0, e.Dim1)
		writeCanonical(b, e.Operand)
		b.WriteByte(')')
	case KindSum:
		fmt.Fprintf(b, "sum(%d,%t,", e.Dim, e.Keepdim)
		writeCanonical(b, e.Operand)
		b.WriteByte(')')
	case KindCat:
		fmt.Fprintf(b, "cat(%d", e.Dim)
		for _, v := range e.Values {
			b.WriteByte(',')
			writeCanonical(b, v)
		}
		b.WriteByte(')')
	case KindSlice:
		fmt.Fprintf(b, "slice(%d,%d,%d,", e.Dim, e.Start, e.Len)
		writeCanonical(b, e.Operand)
		b.WriteByte(')')
	case KindGridScatter:
		b.WriteString("grid_scatter(")
		writeCanonical(b, e.GridValue)
		b.WriteByte(',')
		writeCanonical(b, e.X)
		b.WriteByte(',')
		writeCanonical(b, e.Y)
		b.WriteByte(')')
	case KindGridGather:
		b.WriteString("grid_gather(")
		writeCanonical(b, e.GridValue)
		b.WriteByte(',')
		writeCanonical(b, e.X)
		b.WriteByte(',')
		writeCanonical(b, e.Y)
		b.WriteByte(')')
	case KindStencil:
		fmt.Fprintf(b, "stencil(%d,", e.Range)
		writeCanonical(b, e.StencilValue)
		b.WriteByte(',')
		body := e.Kernel(RefAux(stencilCenter), RefAux(stencilNeighbor))
		writeCanonical(b, body)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "unknown(%s)", e.Kind)
	}
}
