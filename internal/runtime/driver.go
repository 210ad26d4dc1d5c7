package runtime

import (
	"context"
	"math/rand"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/grid"
	"github.com/masaori/evolimo/internal/tensor"
)

// Driver owns genes, state, the Phenotype, and the compiled operation
// stream for one bundle, per spec.md §4.6 (C6). Step is the only
// blocking call the caller makes; everything else is a plain
// accessor. A Driver is not safe for concurrent use — the state and
// parameter tensors are owned exclusively by the driver for the
// duration of a step (spec.md §5).
type Driver struct {
	ir        *compiler.OutputIR
	rng       *rand.Rand
	phenotype *Phenotype
	genes     *tensor.Tensor
	state     *tensor.Tensor
	frame     int
	lastStats grid.Stats
}

// NewDriver allocates genes and state from ir's initialization
// distributions and constructs the phenotype engine, per spec.md
// §4.6 steps (i)-(ii).
func NewDriver(ir *compiler.OutputIR, seed int64) (*Driver, error) {
	rng := rand.New(rand.NewSource(seed))

	phenotype, err := NewPhenotype(ir, rng)
	if err != nil {
		return nil, err
	}
	state, err := InitState(ir, rng)
	if err != nil {
		return nil, err
	}
	genes := InitGenes(ir, rng)

	return &Driver{
		ir:        ir,
		rng:       rng,
		phenotype: phenotype,
		genes:     genes,
		state:     state,
	}, nil
}

// Step computes params = phenotype(genes), then state = update(state,
// params), then applies boundary conditions, per spec.md §4.6 step
// (iii). ctx is checked once at entry; there is no suspension inside
// a step (spec.md §5).
func (d *Driver) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params, err := d.phenotype.Forward(d.genes)
	if err != nil {
		return err
	}

	env, err := d.bindEnv(params)
	if err != nil {
		return err
	}

	var gridCfg *grid.Config
	if d.ir.GridConfig != nil {
		gridCfg = &grid.Config{
			Width:     d.ir.GridConfig.Width,
			Height:    d.ir.GridConfig.Height,
			Capacity:  d.ir.GridConfig.Capacity,
			CellSizeX: d.ir.GridConfig.CellSize[0],
			CellSizeY: d.ir.GridConfig.CellSize[1],
		}
	}

	env, stats, err := (Interpreter{}).Execute(d.ir.Operations, env, gridCfg)
	if err != nil {
		return err
	}
	d.lastStats = stats

	cols := make([]*tensor.Tensor, len(d.ir.StateVars))
	for i, name := range d.ir.StateVars {
		v, ok := env[name]
		if !ok {
			return shapeErrorf("step", "state var %q never bound by the op stream", name)
		}
		cols[i] = v
	}
	state, err := tensor.Cat(cols, 1)
	if err != nil {
		return err
	}

	if err := ApplyBoundaries(d.ir, state); err != nil {
		return err
	}

	d.state = state
	d.frame++
	return nil
}

// bindEnv builds the op stream's initial binding environment: one
// s_<name> column per state var (spec.md §4.3 step 1) and one
// p_<id> column per group parameter, sliced from that group's
// phenotype output.
func (d *Driver) bindEnv(params map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	env := map[string]*tensor.Tensor{}
	for i, name := range d.ir.StateVars {
		col, err := d.state.Slice(1, i, 1)
		if err != nil {
			return nil, err
		}
		env["s_"+name] = col
	}
	for groupName, g := range d.ir.Groups {
		out, ok := params[groupName]
		if !ok {
			continue
		}
		for j, paramID := range g.Params {
			col, err := out.Slice(1, j, 1)
			if err != nil {
				return nil, err
			}
			env["p_"+paramID] = col
		}
	}
	return env, nil
}

// Frame returns the number of steps completed so far.
func (d *Driver) Frame() int { return d.frame }

// Stats returns the grid overflow stats from the most recently
// completed step (zero value before the first step).
func (d *Driver) Stats() grid.Stats { return d.lastStats }

// Snapshot returns the current state and genes tensors for the
// external replay writer, whose format is out of scope here.
func (d *Driver) Snapshot() (state, genes *tensor.Tensor) {
	return d.state, d.genes
}
