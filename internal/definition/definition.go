// Package definition is the user-facing bundle a definition module
// builds: state order, parameter groups, dynamics rules, boundaries,
// initialization, optional grid config, and the visual mapping the
// compiler passes through untouched.
//
// Go has no script interpreter to point at a "definitions/" directory
// at runtime the way the original domain-model does — a stencil kernel
// is a host-language closure (spec.md §4.1), so a definition module is
// necessarily Go source. The idiomatic equivalent is a small registry:
// each definition module registers itself from an init() function, and
// the compiler walks the registry instead of walking a filesystem.
package definition

import "github.com/masaori/evolimo/internal/ir"

// Activation is a parameter group's phenotype head activation.
type Activation string

const (
	ActivationSoftmax Activation = "softmax"
	ActivationTanh    Activation = "tanh"
	ActivationSigmoid Activation = "sigmoid"
	ActivationNone    Activation = "none"
)

// ParameterGroups maps a group name to the activation applied at its
// phenotype head. Membership (which parameter ids belong to a group) is
// discovered by the compiler from ref_param expressions, not declared
// here — only the set of known groups and their activations are.
type ParameterGroups map[string]Activation

// BoundaryKind is the wrap/clamp/no-op policy applied to a state var
// after each step.
type BoundaryKind string

const (
	BoundaryTorus BoundaryKind = "torus"
	BoundaryClamp BoundaryKind = "clamp"
	BoundaryNone  BoundaryKind = "none"
)

// Boundary binds a boundary policy to one state var.
type Boundary struct {
	TargetState string
	Kind        BoundaryKind
	Min, Max    float64
}

// DistributionKind selects how Distribution samples.
type DistributionKind string

const (
	DistributionConst   DistributionKind = "const"
	DistributionUniform DistributionKind = "uniform"
	DistributionNormal  DistributionKind = "normal"
)

// Distribution is the const|uniform|normal variant from spec.md §3.
type Distribution struct {
	Kind DistributionKind

	// const
	Value float64

	// uniform
	Low, High float64

	// normal
	Mean, Std float64
}

func Const(v float64) Distribution { return Distribution{Kind: DistributionConst, Value: v} }

func Uniform(low, high float64) Distribution {
	return Distribution{Kind: DistributionUniform, Low: low, High: high}
}

func Normal(mean, std float64) Distribution {
	return Distribution{Kind: DistributionNormal, Mean: mean, Std: std}
}

// GridConfig is the fixed-capacity uniform grid configuration.
type GridConfig struct {
	Width, Height, Capacity int
	CellSizeX, CellSizeY    float64
}

// VisualMapping names state-var sources for the external viewer. The
// core neither consumes nor validates it beyond passing it through.
type VisualMapping struct {
	PositionX string `json:"position_x"`
	PositionY string `json:"position_y"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Opacity   string `json:"opacity,omitempty"`
	Blend     string `json:"blend,omitempty"`
}

// Rule is one per-state-variable update expression.
type Rule struct {
	TargetState string
	Expr        *ir.Expr
}

// Initialization covers every state var plus the gene vector.
type Initialization struct {
	State map[string]Distribution
	Genes Distribution
}

// Bundle is the complete definition surface the compiler consumes.
type Bundle struct {
	Name string

	// STATE_VAR_ORDER: the declared preference order; state vars
	// referenced but absent here are appended lexicographically by the
	// compiler (spec.md §4.2 step 1).
	StateVarOrder []string

	ParameterGroups ParameterGroups
	Rules           []Rule
	Boundaries      []Boundary
	Init            Initialization
	Grid            *GridConfig
	Visual          *VisualMapping

	NAgents   int
	GeneLen   int
	HiddenLen int
}
