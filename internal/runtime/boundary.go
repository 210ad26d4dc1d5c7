package runtime

import (
	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/tensor"
)

// ApplyBoundaries mutates state's columns in place per ir's declared
// boundary_conditions, applied after the op stream per spec.md §4.3
// step 5. state's columns are in ir.StateVars order.
func ApplyBoundaries(ir *compiler.OutputIR, state *tensor.Tensor) error {
	index := make(map[string]int, len(ir.StateVars))
	for i, name := range ir.StateVars {
		index[name] = i
	}

	width := len(ir.StateVars)
	for _, b := range ir.BoundaryConditions {
		col, ok := index[b.TargetState]
		if !ok {
			continue
		}
		min, max := b.Range[0], b.Range[1]
		switch b.Kind {
		case "torus":
			span := max - min
			for row := 0; row < state.Shape[0]; row++ {
				off := row*width + col
				v := float64(state.Data[off]) - min
				v = v - span*floorDiv(v, span)
				state.Data[off] = float32(v + min)
			}
		case "clamp":
			for row := 0; row < state.Shape[0]; row++ {
				off := row*width + col
				v := state.Data[off]
				if float64(v) < min {
					v = float32(min)
				} else if float64(v) > max {
					v = float32(max)
				}
				state.Data[off] = v
			}
		case "none":
			// no-op
		default:
			return shapeErrorf("boundary", "unknown boundary kind %q", b.Kind)
		}
	}
	return nil
}

// floorDiv returns floor(v/span), giving the non-negative remainder
// the torus boundary needs regardless of v's sign.
func floorDiv(v, span float64) float64 {
	q := v / span
	f := float64(int64(q))
	if q < 0 && f != q {
		f--
	}
	return f
}
