package ir_test

import (
	"testing"

	"github.com/masaori/evolimo/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalIdenticalSubtreesMatch(t *testing.T) {
	a := ir.Add(ir.RefState("pos_x"), ir.Const(1))
	b := ir.Add(ir.RefState("pos_x"), ir.Const(1))
	assert.Equal(t, ir.Canonical(a), ir.Canonical(b))
}

func TestCanonicalDifferentSubtreesDiffer(t *testing.T) {
	a := ir.Add(ir.RefState("pos_x"), ir.Const(1))
	b := ir.Add(ir.RefState("pos_y"), ir.Const(1))
	assert.NotEqual(t, ir.Canonical(a), ir.Canonical(b))
}

func TestCanonicalStencilKernelBody(t *testing.T) {
	k1 := func(center, neighbor *ir.Expr) *ir.Expr { return ir.Sub(neighbor, center) }
	k2 := func(center, neighbor *ir.Expr) *ir.Expr { return ir.Sub(neighbor, center) }
	k3 := func(center, neighbor *ir.Expr) *ir.Expr { return ir.Add(neighbor, center) }

	s1 := ir.Stencil(ir.RefAux("grid"), 1, k1)
	s2 := ir.Stencil(ir.RefAux("grid"), 1, k2)
	s3 := ir.Stencil(ir.RefAux("grid"), 1, k3)

	assert.Equal(t, ir.Canonical(s1), ir.Canonical(s2), "identical kernel bodies must canonicalize identically")
	assert.NotEqual(t, ir.Canonical(s1), ir.Canonical(s3), "different kernel bodies must canonicalize differently")
}
