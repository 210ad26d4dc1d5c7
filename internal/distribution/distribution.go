// Package distribution samples initial values from a
// definition.Distribution, generalizing the teacher's randomGenome
// pattern (fixed struct fields, each filled by a literal rand.Float64
// call) into a data-driven const|uniform|normal sampler.
package distribution

import (
	"math"
	"math/rand"

	"github.com/masaori/evolimo/internal/definition"
)

// Sample draws one value from d using r.
func Sample(r *rand.Rand, d definition.Distribution) float64 {
	switch d.Kind {
	case definition.DistributionConst:
		return d.Value
	case definition.DistributionUniform:
		return d.Low + r.Float64()*(d.High-d.Low)
	case definition.DistributionNormal:
		return d.Mean + r.NormFloat64()*d.Std
	default:
		// Unreachable for a distribution built through the definition
		// package's own constructors; a zero-value Distribution is a
		// definition error the compiler already rejects before
		// sampling is ever reached.
		return 0
	}
}

// Column draws n independent samples from d, one per agent.
func Column(r *rand.Rand, d definition.Distribution, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Sample(r, d)
	}
	return out
}

// Matrix draws an n-by-width table of independent samples, row-major —
// used for the gene matrix, where each agent gets its own row.
func Matrix(r *rand.Rand, d definition.Distribution, n, width int) []float64 {
	out := make([]float64, n*width)
	for i := range out {
		out[i] = Sample(r, d)
	}
	return out
}

// Validate reports whether d is a well-formed distribution, catching
// the defined-but-degenerate cases a hand-authored definition module
// can produce (high < low, negative or NaN std) before they silently
// poison every sampled column with NaN or an inverted range.
func Validate(d definition.Distribution) error {
	switch d.Kind {
	case definition.DistributionConst:
		return nil
	case definition.DistributionUniform:
		if d.High < d.Low {
			return errInvalidRange
		}
		return nil
	case definition.DistributionNormal:
		if d.Std < 0 || math.IsNaN(d.Std) {
			return errInvalidStd
		}
		return nil
	default:
		return errUnknownKind
	}
}
